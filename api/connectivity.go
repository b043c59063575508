package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/the-lightning-land/nmwatchd/connectivity"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

type getConnectivityResponse struct {
	State   string `json:"state"`
	Changed bool   `json:"changed"`
}

type connectivityEvent struct {
	State string    `json:"state"`
	Time  time.Time `json:"time"`
}

// handleGetConnectivity answers with the current state, or with ?wait=STATE
// blocks until the state differs from STATE or the poll times out.
func (a *Api) handleGetConnectivity() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wait := r.URL.Query().Get("wait")
		if wait == "" {
			a.jsonResponse(w, &getConnectivityResponse{
				State: a.gateway.CurrentState().String(),
			}, http.StatusOK)
			return
		}

		state, ok := connectivity.ParseState(wait)
		if !ok {
			a.jsonError(w, fmt.Sprintf("Unknown connectivity state %s", wait), http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), a.longPollTimeout)
		defer cancel()

		changed := a.gateway.WaitForStateChange(ctx, state)

		a.jsonResponse(w, &getConnectivityResponse{
			State:   a.gateway.CurrentState().String(),
			Changed: changed,
		}, http.StatusOK)
	}
}

// handleGetConnectivityEvents streams every connectivity change over a
// websocket, starting with the current state.
func (a *Api) handleGetConnectivityEvents() http.HandlerFunc {
	upgrader := &websocket.Upgrader{}

	return func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			a.log.Errorf("Could not upgrade connection: %v", err)
			return
		}

		ctx, cancel := context.WithCancel(context.Background())

		// read pump
		go func() {
			defer cancel()

			c.SetReadLimit(512)
			_ = c.SetReadDeadline(time.Now().Add(pongWait))
			c.SetPongHandler(func(string) error {
				return c.SetReadDeadline(time.Now().Add(pongWait))
			})

			for {
				_, _, err := c.ReadMessage()
				if err != nil {
					if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
						a.log.Errorf("unexpected websocket closure: %v", err)
					}
					break
				}
			}
		}()

		states := make(chan connectivity.State)

		go func() {
			defer close(states)

			state := a.gateway.CurrentState()

			for {
				select {
				case states <- state:
				case <-ctx.Done():
					return
				}

				if !a.gateway.WaitForStateChange(ctx, state) {
					return
				}

				state = a.gateway.CurrentState()
			}
		}()

		// write pump
		go func() {
			defer c.Close()
			defer cancel()

			ticker := time.NewTicker(pingPeriod)
			defer ticker.Stop()

			for {
				select {
				case state, ok := <-states:
					_ = c.SetWriteDeadline(time.Now().Add(writeWait))

					if !ok {
						_ = c.WriteMessage(websocket.CloseMessage, []byte{})
						return
					}

					err := c.WriteJSON(&connectivityEvent{
						State: state.String(),
						Time:  time.Now(),
					})
					if err != nil {
						return
					}
				case <-ticker.C:
					_ = c.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
						return
					}
				}
			}
		}()
	}
}
