package api

import (
	"net/http"
	"time"
)

type network struct {
	Name          string    `json:"name"`
	SecurityType  string    `json:"securityType"`
	LastConnected time.Time `json:"lastConnected"`
	ConnectCount  int       `json:"connectCount"`
}

type getNetworksResponse struct {
	Networks []*network `json:"networks"`
}

func (a *Api) handleGetNetworks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connections, err := a.gateway.Connections()
		if err != nil {
			a.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}

		res := &getNetworksResponse{
			Networks: []*network{},
		}

		for _, connection := range connections {
			res.Networks = append(res.Networks, &network{
				Name:          connection.Name,
				SecurityType:  connection.SecurityType,
				LastConnected: connection.LastConnected,
				ConnectCount:  connection.ConnectCount,
			})
		}

		a.jsonResponse(w, res, http.StatusOK)
	}
}
