package server

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"SonicPlayer/core/player"
	"SonicPlayer/core/remote"
	"SonicPlayer/core/session"
	"SonicPlayer/logger"
	"SonicPlayer/model"
)

// PlatformHandler injects system transport commands and audio session notifications.
// Headless deployments have no OS media layer, so the host delivers them over HTTP.
type PlatformHandler struct {
	player  *player.Controller
	session *session.Session
}

func NewPlatformHandler(p *player.Controller, s *session.Session) *PlatformHandler {
	if s == nil {
		s = session.Shared()
	}
	return &PlatformHandler{player: p, session: s}
}

// RemoteHandler 处理远程控制命令
func (h *PlatformHandler) RemoteHandler(w http.ResponseWriter, r *http.Request) {
	cmd := remote.Command{Kind: model.MediaCommand(mux.Vars(r)["command"])}
	if _, err := decodeBody(r, &cmd); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	// the path names the command
	cmd.Kind = model.MediaCommand(mux.Vars(r)["command"])

	err := h.player.Remote().Dispatch(cmd)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.player.Status())
	case errors.Is(err, remote.ErrCommandDisabled):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, remote.ErrUnknownCommand):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

// InterruptionRequest 中断通知
type InterruptionRequest struct {
	Phase        string `json:"phase"` // "began" or "ended"
	ShouldResume bool   `json:"shouldResume"`
}

// InterruptionHandler 转发中断开始/结束通知
func (h *PlatformHandler) InterruptionHandler(w http.ResponseWriter, r *http.Request) {
	var req InterruptionRequest
	if ok, err := decodeBody(r, &req); err != nil || !ok {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	n := session.Notification{ShouldResume: req.ShouldResume}
	switch req.Phase {
	case "began":
		n.Kind = session.InterruptionBegan
	case "ended":
		n.Kind = session.InterruptionEnded
	default:
		http.Error(w, "phase must be began or ended", http.StatusBadRequest)
		return
	}

	delivered := h.session.Post(n)
	logger.Info("interruption injected",
		logger.String("phase", req.Phase),
		logger.Bool("delivered", delivered))
	writeJSON(w, http.StatusAccepted, map[string]bool{"delivered": delivered})
}

// RouteHandler 转发音频路由变化
func (h *PlatformHandler) RouteHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if ok, err := decodeBody(r, &req); err != nil || !ok {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	reason := session.ParseRouteChangeReason(req.Reason)
	delivered := h.session.Post(session.Notification{Kind: session.RouteChanged, Reason: reason})
	logger.Info("route change injected",
		logger.Stringer("reason", reason),
		logger.Bool("delivered", delivered))
	writeJSON(w, http.StatusAccepted, map[string]bool{"delivered": delivered})
}
