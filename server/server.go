// Package server contains the admin HTTP surface shared by the
// decoder and processor. BindRoutes is adapted from the stem-based
// http.HandleFunc wiring the teacher uses in its instrument servers
// to instead bind onto a goji mux, the pattern cmd/lowfssrv uses
// alongside its ZMQ control channel.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"goji.io"
	"goji.io/pat"
)

// HTTPBinder is an object which knows how to bind methods to HTTP routes and can list them
type HTTPBinder interface {
	BindRoutes(mux *goji.Mux, stem string)
	ListRoutes() []string
}

// RouteTable maps a URL path (GET-only; the admin surface is
// read-only) to the handler that serves it.
type RouteTable map[string]http.HandlerFunc

// ListEndpoints lists the endpoints in a RouteTable (the keys)
func (rt RouteTable) ListEndpoints() []string {
	routes := make([]string, 0, len(rt))
	for k := range rt {
		routes = append(routes, k)
	}
	return routes
}

// A Server holds a RouteTable and implements HTTPBinder
type Server struct {
	RouteTable RouteTable
}

// BindRoutes binds every route in s.RouteTable onto mux under stem,
// plus a stem/list-of-routes introspection endpoint.
func (s *Server) BindRoutes(mux *goji.Mux, stem string) {
	for str, meth := range s.RouteTable {
		mux.HandleFunc(pat.Get(stem+"/"+str), meth)
	}

	mux.HandleFunc(pat.Get(stem+"/list-of-routes"), func(w http.ResponseWriter, r *http.Request) {
		list := s.ListRoutes()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		err := json.NewEncoder(w).Encode(list)
		if err != nil {
			fstr := fmt.Sprintf("error encoding list of routes data to json %q", err)
			log.Println(fstr)
			http.Error(w, fstr, http.StatusInternalServerError)
		}
	})
}

// ListRoutes returns a slice of strings that includes all of the routes bound
// by this server
func (s *Server) ListRoutes() []string {
	return s.RouteTable.ListEndpoints()
}
