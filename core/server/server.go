package server

import (
	"errors"

	"arxcore/core/entity"
	"arxcore/core/logger"
	"arxcore/core/middleware/auth"
	"arxcore/core/middleware/rayid"
	"arxcore/core/objectstore"
	"arxcore/core/pending"
	"arxcore/core/query"
	"arxcore/core/reconcile"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Deps are the collaborators the API surfaces. Engine may be nil when
// the process runs without reconciliation (one-shot CLI sessions).
type Deps struct {
	Store   *objectstore.Store
	Query   *query.Engine
	Pending *pending.Registry
	Engine  *reconcile.Engine
}

// Server is the HTTP API over one repository.
type Server struct {
	app  *fiber.App
	cfg  Config
	deps Deps
	log  *zap.Logger
}

// New builds the Fiber application with middleware and routes.
func New(cfg Config, deps Deps, log *zap.Logger) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		log:  log,
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true, // We log our own startup message
	})

	// RayID must be first so everything downstream can trace.
	app.Use(rayid.New())

	app.Use(func(c *fiber.Ctx) error {
		l := logger.WithRayID(log, c)
		l.Info("Request started",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("ip", c.IP()),
		)
		err := c.Next()
		if err != nil {
			l.Error("Request error", zap.Error(err))
		}
		return err
	})

	app.Use(auth.New(auth.Config{ApiKey: cfg.ApiKey}))

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/query", s.handleQuery)
	api.Get("/pending", s.handlePendingList)
	api.Post("/pending", s.handlePendingSubmit)
	api.Post("/pending/:id/confirm", s.handlePendingConfirm)
	api.Post("/pending/:id/reject", s.handlePendingReject)

	s.app = app
	return s
}

// App exposes the underlying Fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves until Shutdown is called.
func (s *Server) Listen() error {
	s.log.Info("Starting server", zap.String("port", s.cfg.Port))
	return s.app.Listen(":" + s.cfg.Port)
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// handleStatus reports repository and source health.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	head, err := s.deps.Store.Head()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	tip, err := s.deps.Store.Tip(head)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	snap, err := s.deps.Store.ReadSnapshot(tip.SnapshotHash)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}

	status := fiber.Map{
		"building": s.deps.Store.Building(),
		"branch":   head,
		"commit":   tip.ID,
		"entities": snap.Len(),
		"pending":  len(s.deps.Pending.List(pending.StatusPending)),
	}
	if s.deps.Engine != nil {
		status["sources"] = s.deps.Engine.Status()
	}
	return c.JSON(status)
}

// handleQuery evaluates the q parameter with the query engine.
func (s *Server) handleQuery(c *fiber.Ctx) error {
	q := c.Query("q")
	if q == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing query parameter q",
		})
	}

	result, err := s.deps.Query.Run(q)
	if err != nil {
		var syn *query.SyntaxError
		if errors.As(err, &syn) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": syn.Error(),
			})
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(result)
}

// handlePendingList lists proposals, optionally filtered by status.
func (s *Server) handlePendingList(c *fiber.Ctx) error {
	status := pending.Status(c.Query("status"))
	return c.JSON(fiber.Map{
		"proposals": s.deps.Pending.List(status),
	})
}

// pendingSubmission is the POST /api/pending body.
type pendingSubmission struct {
	Path       string            `json:"path"`
	Position   entity.Point3D    `json:"position"`
	Confidence entity.Confidence `json:"confidence"`
	Source     string            `json:"source"`
	Note       string            `json:"note"`
}

// handlePendingSubmit records a new equipment proposal.
func (s *Server) handlePendingSubmit(c *fiber.Ctx) error {
	var body pendingSubmission
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "malformed body: " + err.Error(),
		})
	}
	if body.Confidence == "" {
		body.Confidence = entity.ConfidenceLow
	}
	if body.Source == "" {
		body.Source = "api"
	}

	p, err := s.deps.Pending.Add(body.Path, body.Position, body.Confidence, body.Source, body.Note)
	if err != nil {
		if errors.Is(err, pending.ErrDuplicatePath) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// handlePendingConfirm promotes a proposal and stages the resulting
// equipment mutation; committing stays an explicit operation.
func (s *Server) handlePendingConfirm(c *fiber.Ctx) error {
	id := c.Params("id")
	decidedBy := c.Get(rayid.Header)
	if by := c.Query("by"); by != "" {
		decidedBy = by
	}

	e, err := s.deps.Pending.Confirm(id, decidedBy)
	if err != nil {
		return pendingError(c, err)
	}
	if err := s.deps.Store.Stage(&objectstore.Mutation{
		Op:     objectstore.MutationAdd,
		Path:   e.Path,
		Entity: e,
	}); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"staged": e.Path})
}

// handlePendingReject discards a proposal.
func (s *Server) handlePendingReject(c *fiber.Ctx) error {
	id := c.Params("id")
	by := c.Query("by")
	reason := c.Query("reason")

	if err := s.deps.Pending.Reject(id, by, reason); err != nil {
		return pendingError(c, err)
	}
	return c.JSON(fiber.Map{"rejected": id})
}

func pendingError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, pending.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, pending.ErrAlreadyDecided):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
