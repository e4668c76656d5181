package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/minewatch/backend/internal/analysis"
	"github.com/minewatch/backend/pkg/logger"
)

type WebSocketHandler struct {
	engine *analysis.Engine
}

func NewWebSocketHandler(engine *analysis.Engine) *WebSocketHandler {
	return &WebSocketHandler{
		engine: engine,
	}
}

// HandleConnection serves one client: each "analyze" message triggers a full
// pass, with stage updates streamed back as the pipeline advances.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type     string `json:"type"`
			CaseID   string `json:"case_id"`
			Holder   string `json:"holder"`
			Region   string `json:"region"`
			Question string `json:"question"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		if msg.Type != "analyze" {
			continue
		}

		if msg.CaseID == "" || msg.Holder == "" {
			h.sendError(c, "case_id and holder are required")
			continue
		}

		logger.Info("Processing WebSocket analysis",
			zap.String("case_id", msg.CaseID),
			zap.String("holder", msg.Holder),
		)

		err = h.streamAnalysis(c, analysis.Request{
			CaseID:   msg.CaseID,
			Holder:   msg.Holder,
			Region:   msg.Region,
			Question: msg.Question,
		})
		if err != nil {
			logger.Error("Failed to stream analysis", zap.Error(err))
			h.sendError(c, "Failed to analyze case")
		}
	}
}

func (h *WebSocketHandler) streamAnalysis(c *websocket.Conn, req analysis.Request) error {
	ctx := context.Background()

	req.Progress = func(stage string) {
		h.sendStage(c, stage)
	}

	result, err := h.engine.Analyze(ctx, req)
	if err != nil {
		return err
	}

	return c.WriteJSON(map[string]interface{}{
		"type":     "complete",
		"case_id":  req.CaseID,
		"summary":  result.Summary,
		"sources":  sourcesJSON(result.Sources),
		"findings": findingsJSON(result.RawFindings),
	})
}

func (h *WebSocketHandler) sendStage(c *websocket.Conn, stage string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "stage",
		"stage": stage,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
