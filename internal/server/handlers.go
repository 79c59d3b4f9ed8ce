package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/wotyapustoy-lab/promt-protocol-chat/llm"
	"github.com/wotyapustoy-lab/promt-protocol-chat/persona"
	"github.com/wotyapustoy-lab/promt-protocol-chat/providers/hf"
)

const (
	rootBanner       = ">_ PROMT neural backend active. UI: /static/monitor-chat/index.html"
	resetReply       = ">_ neural cache cleared."
	imageOKMessage   = ">_ visual echo formed.\n>_ //signal stabilized."
	imageMissingCred = ">_ HF_TOKEN missing in environment."
	imageGenericErr  = ">_ image generation error."
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(rootBanner))
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, chatResponse{Reply: ">_ message is required."})
		return
	}

	locale := persona.Detect(req.Message)
	system := s.cfg.Persona.System(locale, false)

	// One shared buffer for every caller: PROMT is a single collective
	// conversation, not per-user sessions.
	s.deps.History.Append(llm.Message{Role: llm.RoleUser, Content: req.Message})
	text := s.deps.Chat.Generate(r.Context(), system, s.deps.History.Snapshot())
	s.deps.History.Append(llm.Message{Role: llm.RoleAssistant, Content: text})

	writeJSON(w, http.StatusOK, chatResponse{Reply: text})
}

type imageRequest struct {
	Prompt string `json:"prompt"`
}

type imageResponse struct {
	Image   string `json:"image,omitempty"`
	Message string `json:"message"`
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	uri, err := s.deps.Images.Generate(r.Context(), req.Prompt)
	if err != nil {
		var se *hf.StatusError
		switch {
		case errors.Is(err, hf.ErrMissingToken):
			writeJSON(w, http.StatusBadRequest, imageResponse{Message: imageMissingCred})
		case errors.As(err, &se):
			writeJSON(w, http.StatusInternalServerError, imageResponse{Message: ">_ generation failed: " + strconv.Itoa(se.Code)})
		default:
			s.deps.Logger.Warn("image_error", "error", err.Error())
			writeJSON(w, http.StatusInternalServerError, imageResponse{Message: imageGenericErr})
		}
		return
	}

	writeJSON(w, http.StatusOK, imageResponse{Image: uri, Message: imageOKMessage})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.deps.History.Reset()
	writeJSON(w, http.StatusOK, chatResponse{Reply: resetReply})
}

type webhookPayload struct {
	TweetCreateEvents []struct {
		IDStr string `json:"id_str"`
		Text  string `json:"text"`
		User  struct {
			ScreenName string `json:"screen_name"`
		} `json:"user"`
	} `json:"tweet_create_events"`
}

// handleWebhook reacts to inbound tweet-creation events. Everything that is
// not a mention of the bot by someone else is acknowledged and dropped.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || len(payload.TweetCreateEvents) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}

	event := payload.TweetCreateEvents[0]
	author := strings.TrimSpace(event.User.ScreenName)
	if strings.EqualFold(author, s.cfg.BotHandle) {
		w.WriteHeader(http.StatusOK)
		return
	}
	needle := "@" + strings.ToLower(strings.TrimPrefix(s.cfg.BotHandle, "@"))
	if !strings.Contains(strings.ToLower(event.Text), needle) {
		w.WriteHeader(http.StatusOK)
		return
	}

	locale := persona.Detect(event.Text)
	privileged := s.cfg.Persona.IsPrivileged(author)
	system := s.cfg.Persona.System(locale, privileged)
	text := s.deps.Mention.Generate(r.Context(), system, []llm.Message{{Role: llm.RoleUser, Content: event.Text}})

	id, err := strconv.ParseInt(strings.TrimSpace(event.IDStr), 10, 64)
	if err != nil {
		s.deps.Logger.Warn("webhook_bad_tweet_id", "id", event.IDStr)
		w.WriteHeader(http.StatusOK)
		return
	}
	if err := s.deps.Poster.PostReply(r.Context(), text, id); err != nil {
		s.deps.Logger.Warn("webhook_post_error", "error", err.Error())
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.deps.Logger.Info("webhook_replied", "id", id, "author", author, "privileged", privileged)
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
