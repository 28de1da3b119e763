package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/nerrad567/changeling-watch/internal/infrastructure/mqtt"
	"github.com/nerrad567/changeling-watch/internal/status"
)

// CommandRequest is the body of POST /commands.
type CommandRequest struct {
	Command string `json:"command"`
	Force   bool   `json:"force"`
}

// CommandResponse confirms a published command.
type CommandResponse struct {
	Command   status.Command  `json:"command"`
	Topic     string          `json:"topic"`
	LastState status.RunState `json:"last_state,omitempty"`
	Forced    bool            `json:"forced,omitempty"`
}

// handleCommand publishes ENTER, EXIT or DUMP to the command topic.
//
// Unless force is set, a command the daemon would ignore in its last
// reported state is refused with 409. With no status seen yet the command
// is sent as is.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	cmd, err := status.ParseCommand(req.Command)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	resp := CommandResponse{
		Command: cmd,
		Topic:   s.watchCfg.CommandTopic,
		Forced:  req.Force,
	}

	if last, _, seen := s.tracker.Last(); seen {
		resp.LastState = last.State
		if !req.Force && !cmd.AcceptedIn(last.State) {
			writeConflict(w, fmt.Sprintf("%s is ignored while the daemon is %s", cmd, last.State))
			return
		}
	}

	pub := s.publisher()
	if pub == nil || !pub.IsConnected() {
		writeUnavailable(w, "MQTT is not connected")
		return
	}

	if err := pub.Publish(s.watchCfg.CommandTopic, []byte(cmd), byte(s.watchCfg.CommandQoS), false); err != nil { //nolint:gosec // QoS validated by config
		if errors.Is(err, mqtt.ErrNotConnected) {
			writeUnavailable(w, "MQTT is not connected")
			return
		}
		s.logger.Error("publishing command", "command", cmd, "error", err, "request_id", requestIDFrom(r.Context()))
		writeInternalError(w, "failed to publish command")
		return
	}

	s.logger.Info("command published", "command", cmd, "topic", resp.Topic, "forced", req.Force)
	writeJSON(w, http.StatusAccepted, resp)
}
