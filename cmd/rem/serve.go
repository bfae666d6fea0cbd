package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"

	"github.com/remcore/rem/internal/core"
	"github.com/remcore/rem/internal/index"
	"github.com/remcore/rem/internal/rerr"
	"github.com/remcore/rem/internal/schema"
)

const (
	envAPIToken = "API_TOKEN"
	envAPIHost  = "API_HOST"
	envAPIPort  = "API_PORT"

	defaultAPIHost = "127.0.0.1"
	defaultAPIPort = "8420"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API over the same operations the CLI exposes",
	RunE: runHandled(func(cmd *cobra.Command, args []string) error {
		e, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer e.Close()

		host := os.Getenv(envAPIHost)
		if host == "" {
			host = defaultAPIHost
		}
		port := os.Getenv(envAPIPort)
		if port == "" {
			port = defaultAPIPort
		}
		token := os.Getenv(envAPIToken)

		srv := &httpServer{engine: e}
		app := echo.New()
		app.HideBanner = true
		app.Use(middleware.Logger())
		app.Use(middleware.Recover())
		app.Use(middleware.CORS())
		if token != "" {
			app.Use(bearerAuth(token))
		}
		srv.routes(app)

		addr := host + ":" + port
		go func() {
			if err := app.Start(addr); err != nil && err != http.ErrServerClosed {
				app.Logger.Fatal(err)
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.Shutdown(ctx)
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// bearerAuth rejects requests whose Authorization header does not carry
// "Bearer <token>" matching the configured token exactly.
func bearerAuth(token string) echo.MiddlewareFunc {
	const prefix = "Bearer "
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if len(header) <= len(prefix) || header[:len(prefix)] != prefix || header[len(prefix):] != token {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid bearer token")
			}
			return next(c)
		}
	}
}

type httpServer struct {
	engine *core.Engine
}

func (s *httpServer) routes(app *echo.Echo) {
	app.GET("/status", s.handleStatus)

	app.POST("/notes", s.handleSaveNote)
	app.GET("/notes/:id", s.handleGetNote)
	app.GET("/notes/:id/sections", s.handleListSections)
	app.GET("/notes/:id/sections/find", s.handleFindSection)
	app.GET("/notes/search", s.handleSearchNotes)

	app.POST("/proposals", s.handleCreateProposal)
	app.GET("/proposals/:id", s.handleGetProposal)
	app.GET("/proposals", s.handleListProposals)
	app.POST("/proposals/:id/accept", s.handleAcceptProposal)
	app.POST("/proposals/:id/reject", s.handleRejectProposal)

	app.GET("/events", s.handleListEvents)

	app.POST("/plugins", s.handleRegisterPlugin)
	app.GET("/plugins", s.handleListPlugins)
	app.GET("/plugins/:namespace", s.handleGetPlugin)
	app.POST("/plugins/:namespace/install", s.handleInstallPlugin)
	app.POST("/plugins/:namespace/enable", s.handleEnablePlugin)
	app.POST("/plugins/:namespace/disable", s.handleDisablePlugin)
	app.POST("/plugins/:namespace/uninstall", s.handleUninstallPlugin)

	app.POST("/entities/:namespace/:entityType/:id", s.handleSaveEntity)
	app.GET("/entities/:namespace/:entityType/:id", s.handleGetEntity)
	app.GET("/entities/:namespace/:entityType", s.handleListEntities)

	app.GET("/daily", s.handleDailyNote)

	app.POST("/scheduler/run", s.handleSchedulerRun)
	app.GET("/scheduler/status", s.handleSchedulerStatus)

	app.POST("/actions/:namespace/:actionId/invoke", s.handleInvokeAction)

	app.POST("/maintenance/rebuild-index", s.handleRebuildIndex)
	app.POST("/maintenance/migrate-section-identity", s.handleMigrateSectionIdentity)
}

func httpError(err error) error {
	code := http.StatusInternalServerError
	switch rerr.CodeOf(err) {
	case rerr.CodeNoteNotFound, rerr.CodeProposalNotFound, rerr.CodePluginNotFound,
		rerr.CodeEntityNotFound, rerr.CodeSectionNotFound, rerr.CodeTemplateNotFound:
		code = http.StatusNotFound
	case rerr.CodeInvalidInput, rerr.CodeInvalidFormat, rerr.CodeInvalidTransition,
		rerr.CodeMissingNamespace, rerr.CodeEntitySchemaMismatc:
		code = http.StatusBadRequest
	}
	return echo.NewHTTPError(code, err.Error())
}

func requestActor(c echo.Context) schema.Actor {
	if agentID := c.QueryParam("actorAgentId"); agentID != "" {
		return schema.Actor{Kind: schema.ActorAgent, ID: agentID}
	}
	return schema.Actor{Kind: schema.ActorHuman}
}

func (s *httpServer) handleStatus(c echo.Context) error {
	status, err := s.engine.GetStatus()
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, status)
}

func (s *httpServer) handleSaveNote(c echo.Context) error {
	var body core.SaveNoteInput
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	body.Actor = requestActor(c)
	note, err := s.engine.SaveNote(body)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, note)
}

func (s *httpServer) handleGetNote(c echo.Context) error {
	format := core.NoteFormat(c.QueryParam("format"))
	if format == "" {
		format = core.FormatNoteLexical
	}
	rendered, err := s.engine.GetNote(c.Param("id"), format)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"noteId": c.Param("id"), "body": rendered})
}

func (s *httpServer) handleListSections(c echo.Context) error {
	sections, err := s.engine.ListSections(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, sections)
}

func (s *httpServer) handleFindSection(c echo.Context) error {
	section, err := s.engine.FindSection(core.FindSectionParams{
		NoteID:    c.Param("id"),
		SectionID: c.QueryParam("sectionId"),
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, section)
}

func (s *httpServer) handleSearchNotes(c echo.Context) error {
	results, err := s.engine.SearchNotes(c.QueryParam("q"), index.NoteFilter{})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, results)
}

func (s *httpServer) handleCreateProposal(c echo.Context) error {
	var p schema.Proposal
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.Actor = requestActor(c)
	created, err := s.engine.CreateProposal(p)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, created)
}

func (s *httpServer) handleGetProposal(c echo.Context) error {
	p, err := s.engine.GetProposal(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *httpServer) handleListProposals(c echo.Context) error {
	out, err := s.engine.ListProposals(index.ProposalFilter{
		NoteID: c.QueryParam("noteId"),
		Status: schema.ProposalStatus(c.QueryParam("status")),
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *httpServer) handleAcceptProposal(c echo.Context) error {
	p, note, err := s.engine.AcceptProposal(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"proposal": p, "noteId": note.NoteID})
}

func (s *httpServer) handleRejectProposal(c echo.Context) error {
	p, err := s.engine.RejectProposal(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *httpServer) handleListEvents(c echo.Context) error {
	events, err := s.engine.ListEvents(index.EventFilter{Type: c.QueryParam("type")})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, events)
}

func (s *httpServer) handleRegisterPlugin(c echo.Context) error {
	var m schema.Manifest
	if err := c.Bind(&m); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := s.engine.RegisterPlugin(m)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *httpServer) handleListPlugins(c echo.Context) error {
	manifests, err := s.engine.ListPlugins()
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, manifests)
}

func (s *httpServer) handleGetPlugin(c echo.Context) error {
	p, err := s.engine.GetPlugin(c.Param("namespace"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *httpServer) handleInstallPlugin(c echo.Context) error {
	p, err := s.engine.InstallPlugin(c.Param("namespace"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *httpServer) handleEnablePlugin(c echo.Context) error {
	p, err := s.engine.EnablePlugin(c.Param("namespace"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *httpServer) handleDisablePlugin(c echo.Context) error {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.Bind(&body)
	p, err := s.engine.DisablePlugin(c.Param("namespace"), body.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *httpServer) handleUninstallPlugin(c echo.Context) error {
	p, err := s.engine.UninstallPlugin(c.Param("namespace"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (s *httpServer) handleSaveEntity(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ent, err := s.engine.SaveEntity(core.SaveEntityInput{
		Namespace: c.Param("namespace"), EntityType: c.Param("entityType"), ID: c.Param("id"),
		SchemaVersion: c.QueryParam("schemaVersion"), Data: body, Actor: requestActor(c),
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ent)
}

func (s *httpServer) handleGetEntity(c echo.Context) error {
	ent, compat, err := s.engine.GetEntity(c.Param("namespace"), c.Param("entityType"), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"entity": ent, "compatibility": compat.Mode})
}

func (s *httpServer) handleListEntities(c echo.Context) error {
	entities, err := s.engine.ListEntities(c.Param("namespace"), c.Param("entityType"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entities)
}

func (s *httpServer) handleDailyNote(c echo.Context) error {
	tz := c.QueryParam("tz")
	if tz == "" {
		tz = "UTC"
	}
	note, created, err := s.engine.GetOrCreateDailyNote(time.Now(), tz)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"note": note, "created": created})
}

func (s *httpServer) handleSchedulerRun(c echo.Context) error {
	result, err := s.engine.RunPluginScheduler(c.Request().Context(), time.Now(), nil)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *httpServer) handleSchedulerStatus(c echo.Context) error {
	status, err := s.engine.GetPluginSchedulerStatus()
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, status)
}

func (s *httpServer) handleInvokeAction(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	requestID := c.QueryParam("requestId")
	event, output, invokeErr := s.engine.InvokeAction(c.Request().Context(), c.Param("namespace"), c.Param("actionId"), body, requestActor(c), requestID)
	if invokeErr != nil {
		return httpError(invokeErr)
	}
	return c.JSON(http.StatusOK, map[string]any{"event": event, "output": output})
}

func (s *httpServer) handleRebuildIndex(c echo.Context) error {
	stats, err := s.engine.RebuildIndex()
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (s *httpServer) handleMigrateSectionIdentity(c echo.Context) error {
	result, err := s.engine.MigrateSectionIdentity()
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func readBody(c echo.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := json.NewDecoder(c.Request().Body).Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}
