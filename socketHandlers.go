package main

import (
	"context"
	"log"
	"log/slog"
	"strconv"
	"strings"

	"chest-xray-pipeline/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/mdobak/go-xerrors"
)

type socketController struct {
	svc *statusService
}

func newSocketController(svc *statusService) *socketController {
	return &socketController{svc: svc}
}

func emitError(socket socketio.Conn, message string) {
	socket.Emit("analysisError", map[string]string{"message": message})
}

// handleRequestAnalysis runs a fresh analysis. msg is the dataset mode, empty for classification.
func (c *socketController) handleRequestAnalysis(socket socketio.Conn, msg string) {
	logger := utils.GetLogger()
	ctx := context.Background()

	mode, err := parseModeOrDefault(strings.TrimSpace(msg))
	if err != nil {
		emitError(socket, err.Error())
		return
	}

	res, err := c.svc.analyze(mode)
	if err != nil {
		logger.ErrorContext(ctx, "failed to analyze dataset",
			slog.String("socketID", socket.ID()),
			slog.Any("error", xerrors.New(err)),
		)
		emitError(socket, "failed to analyze dataset")
		return
	}

	socket.Emit("analysis", res)
	log.Printf("[handleRequestAnalysis] Emitted %s analysis for socket %s\n", mode, socket.ID())
}

// handleRequestRuns emits the latest runs. msg optionally carries the limit.
func (c *socketController) handleRequestRuns(socket socketio.Conn, msg string) {
	logger := utils.GetLogger()
	ctx := context.Background()

	limit := defaultListLimit
	if n, err := strconv.Atoi(strings.TrimSpace(msg)); err == nil && n > 0 {
		limit = n
	}

	runs, err := c.svc.recentRuns(ctx, limit)
	if err != nil {
		logger.ErrorContext(ctx, "failed to load runs", slog.Any("error", xerrors.New(err)))
		emitError(socket, "failed to load runs")
		return
	}
	socket.Emit("runs", runs)
}
