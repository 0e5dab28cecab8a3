package api

import (
	"net/http"

	"github.com/nerrad567/gray-logic-eltako/internal/eep"
)

// ProfileView describes a supported EEP.
type ProfileView struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Orgs        []string `json:"orgs"`
	Sender      bool     `json:"sender"`
}

// handleListProfiles returns the EEP catalogue in ID order.
func (s *Server) handleListProfiles(w http.ResponseWriter, _ *http.Request) {
	profiles := eep.Profiles()
	out := make([]ProfileView, 0, len(profiles))
	for _, p := range profiles {
		orgs := make([]string, 0, len(p.Orgs))
		for _, o := range p.Orgs {
			orgs = append(orgs, o.String())
		}
		out = append(out, ProfileView{
			ID:          p.ID.String(),
			Description: p.Description,
			Orgs:        orgs,
			Sender:      p.Sender,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"profiles": out, "count": len(out)})
}
