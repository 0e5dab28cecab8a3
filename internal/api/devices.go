package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-eltako/internal/bridges/eltako"
	"github.com/nerrad567/gray-logic-eltako/internal/directory"
	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
)

// DeviceView is the API representation of a directory entry.
type DeviceView struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Address   string         `json:"address"`
	EEP       string         `json:"eep"`
	Direction string         `json:"direction"`
	Invert    bool           `json:"invert,omitempty"`
	Sender    string         `json:"sender,omitempty"`
	SenderEEP string         `json:"sender_eep,omitempty"`
	State     map[string]any `json:"state,omitempty"`
}

func (s *Server) deviceView(e directory.Entry) DeviceView {
	v := DeviceView{
		ID:        e.Key(),
		Name:      e.Name,
		Address:   e.Address.String(),
		EEP:       e.EEP.String(),
		Direction: string(e.Direction),
		Invert:    e.Invert,
	}
	if e.Sender != nil {
		v.Sender = e.Sender.String()
	}
	if e.SenderEEP != nil {
		v.SenderEEP = e.SenderEEP.String()
	}
	if state, ok := s.bridge.DeviceState(e.Key()); ok {
		v.State = state
	}
	return v
}

// handleListDevices returns every configured device with its last state.
//
// Query parameters:
//   - eep: filter by profile, e.g. A5-10-06
//   - direction: filter by listener or sender
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	eepFilter := r.URL.Query().Get("eep")
	dirFilter := r.URL.Query().Get("direction")

	devices := []DeviceView{}
	for _, e := range s.dir.All() {
		if eepFilter != "" && e.EEP.String() != eepFilter {
			continue
		}
		if dirFilter != "" && string(e.Direction) != dirFilter {
			continue
		}
		devices = append(devices, s.deviceView(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// lookupDevice resolves the {address} URL parameter, which may also be a
// device id.
func (s *Server) lookupDevice(r *http.Request) (directory.Entry, bool) {
	param := chi.URLParam(r, "address")
	if addr, err := enocean.ParseAddress(param); err == nil {
		if e, ok := s.dir.Lookup(addr); ok {
			return e, true
		}
	}
	return s.dir.LookupID(param)
}

// handleGetDevice returns a single device by address or id.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookupDevice(r)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, s.deviceView(e))
}

// commandRequest is the body of POST /devices/{address}/command.
type commandRequest struct {
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// handleDeviceCommand sends a command and answers with the acknowledgement.
//
// Status codes follow the acknowledgement: 200 accepted, 400 invalid
// command or parameters, 404 unknown device, 504 no gateway response and
// 502 for bus failures.
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	e, ok := s.lookupDevice(r)
	if !ok {
		writeNotFound(w, "device not found")
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Command == "" {
		writeBadRequest(w, "command is required")
		return
	}

	requestID, _ := r.Context().Value(ctxKeyRequestID).(string)
	ack := s.bridge.Execute(r.Context(), eltako.CommandMessage{
		ID:         requestID,
		DeviceID:   e.Key(),
		Command:    req.Command,
		Parameters: req.Parameters,
		Source:     "api",
	})

	writeJSON(w, ackHTTPStatus(ack), ack)
}
