package routes

import (
	"agentorange/agentorange/config"
	"agentorange/agentorange/controllers"
	"agentorange/agentorange/middlewares"
	"agentorange/agentorange/utils/logging"
	"agentorange/agentorange/utils/types"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const writeTimeout = 10 * time.Second

func ChatRoutes(ctrl *controllers.ChatController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Group(func(gr chi.Router) {
		gr.Use(middlewares.AuthMiddleware(cfg))
		gr.Use(middleware.Timeout(60 * time.Second))

		// POST /chat/ : send a message, the reply streams over the websocket
		gr.Post("/", handleJSON(func(r *http.Request) (any, int, error) {
			var req types.ChatRequest
			if err := decode(r, &req); err != nil {
				return nil, http.StatusBadRequest, err
			}
			resp, err := ctrl.Send(r.Context(), req)
			if err != nil {
				return nil, statusFor(err), err
			}
			return resp, http.StatusAccepted, nil
		}))

		gr.Get("/groups/{group_id}/messages", handleJSON(func(r *http.Request) (any, int, error) {
			msgs, err := ctrl.Messages(r.Context(), chi.URLParam(r, "group_id"))
			if err != nil {
				return nil, statusFor(err), err
			}
			return msgs, http.StatusOK, nil
		}))

		gr.Get("/groups/{group_id}/code", handleJSON(func(r *http.Request) (any, int, error) {
			snippets, err := ctrl.CodeSnippets(r.Context(), chi.URLParam(r, "group_id"))
			if err != nil {
				return nil, statusFor(err), err
			}
			return snippets, http.StatusOK, nil
		}))

		gr.Delete("/groups/{group_id}", handleJSON(func(r *http.Request) (any, int, error) {
			if err := ctrl.DeleteGroup(r.Context(), chi.URLParam(r, "group_id")); err != nil {
				return nil, statusFor(err), err
			}
			return nil, http.StatusNoContent, nil
		}))

		gr.Delete("/messages", handleJSON(func(r *http.Request) (any, int, error) {
			var req types.DeleteMessagesRequest
			if err := decode(r, &req); err != nil {
				return nil, http.StatusBadRequest, err
			}
			if err := ctrl.DeleteMessages(r.Context(), req.IDs); err != nil {
				return nil, statusFor(err), err
			}
			return nil, http.StatusNoContent, nil
		}))

		gr.Get("/lanes", handleJSON(func(r *http.Request) (any, int, error) {
			return map[string][]string{"lanes": ctrl.ActiveLanes()}, http.StatusOK, nil
		}))

		gr.Post("/lanes/cancel", handleJSON(func(r *http.Request) (any, int, error) {
			return types.CancelResponse{Cancelled: ctrl.CancelAll()}, http.StatusOK, nil
		}))

		gr.Post("/lanes/{lane_id}/cancel", handleJSON(func(r *http.Request) (any, int, error) {
			n := 0
			if ctrl.CancelLane(chi.URLParam(r, "lane_id")) {
				n = 1
			}
			return types.CancelResponse{Cancelled: n}, http.StatusOK, nil
		}))
	})

	// GET /chat/ws?group_id= : message updates of one group
	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		groupID := r.URL.Query().Get("group_id")
		if groupID == "" {
			http.Error(w, "group_id is required", http.StatusBadRequest)
			return
		}
		if cfg.JWTSecret != "" {
			if _, err := middlewares.ParseToken(cfg.JWTSecret, r.URL.Query().Get("token")); err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusInternalError, "internal error")

		client := ctrl.Subscribe(groupID)
		defer ctrl.Unsubscribe(client)

		// the client only listens, reads are drained so close frames are seen
		ctx := conn.CloseRead(r.Context())
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-client.Outbound:
				if !ok {
					conn.Close(websocket.StatusNormalClosure, "")
					return
				}
				data, err := json.Marshal(m.Data)
				if err != nil {
					logging.ErrorLogger.Warn("encode update failed", zap.Error(err))
					continue
				}
				wctx, cancel := context.WithTimeout(ctx, writeTimeout)
				err = conn.Write(wctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					return
				}
			}
		}
	})
	return r
}
