package routes

import (
	"agentorange/agentorange/config"
	"agentorange/agentorange/controllers"
	"agentorange/agentorange/middlewares"
	"agentorange/agentorange/utils/types"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func CommandRoutes(ctrl *controllers.CommandsController, cfg config.Config) chi.Router {
	r := chi.NewRouter()
	r.Use(middlewares.AuthMiddleware(cfg))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/", handleJSON(func(r *http.Request) (any, int, error) {
		cmds, err := ctrl.List(r.Context())
		if err != nil {
			return nil, statusFor(err), err
		}
		return cmds, http.StatusOK, nil
	}))

	r.Post("/", handleJSON(func(r *http.Request) (any, int, error) {
		var req types.CommandRequest
		if err := decode(r, &req); err != nil {
			return nil, http.StatusBadRequest, err
		}
		cmd, err := ctrl.Save(r.Context(), req)
		if err != nil {
			return nil, statusFor(err), err
		}
		return cmd, http.StatusOK, nil
	}))

	r.Delete("/{name}", handleJSON(func(r *http.Request) (any, int, error) {
		if err := ctrl.Delete(r.Context(), chi.URLParam(r, "name")); err != nil {
			return nil, statusFor(err), err
		}
		return nil, http.StatusNoContent, nil
	}))

	r.Post("/{name}/run", handleJSON(func(r *http.Request) (any, int, error) {
		var req types.RunContextRequest
		if err := decode(r, &req); err != nil {
			return nil, http.StatusBadRequest, err
		}
		resp, err := ctrl.Run(r.Context(), chi.URLParam(r, "name"), req)
		if err != nil {
			return nil, statusFor(err), err
		}
		return resp, http.StatusAccepted, nil
	}))
	return r
}
