package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"forum-service/internal/models"
	"forum-service/internal/repositories"
	"forum-service/internal/telemetry"
	"forum-service/internal/textutil"
)

// TopicHandler serves the topic lobby and topic pages.
type TopicHandler struct {
	topicRepo   repositories.TopicRepository
	messageRepo repositories.MessageRepository
	audit       *telemetry.AuditEmitter
	maxTitleLen int
}

// NewTopicHandler builds a TopicHandler.
func NewTopicHandler(topicRepo repositories.TopicRepository, messageRepo repositories.MessageRepository, audit *telemetry.AuditEmitter, maxTitleLen int) *TopicHandler {
	return &TopicHandler{
		topicRepo:   topicRepo,
		messageRepo: messageRepo,
		audit:       audit,
		maxTitleLen: maxTitleLen,
	}
}

// ListTopics returns every topic, newest first.
func (h *TopicHandler) ListTopics(c *gin.Context) {
	topics, err := h.topicRepo.ListTopics(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load topics"})
		return
	}
	if topics == nil {
		topics = []models.Topic{}
	}
	c.JSON(http.StatusOK, gin.H{"topics": topics})
}

// CreateTopic opens a new topic owned by the caller.
func (h *TopicHandler) CreateTopic(c *gin.Context) {
	var req struct {
		Title string `form:"title" json:"title"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	title := textutil.Clean(req.Title, h.maxTitleLen)
	if title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title is required"})
		return
	}

	topic, err := h.topicRepo.CreateTopic(c.Request.Context(), title, c.GetInt("userID"))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create topic"})
		return
	}

	emitAudit(c, h.audit, "INFO", "topic.create", fmt.Sprintf("topic %d created", topic.ID), nil)
	c.JSON(http.StatusCreated, topic)
}

// GetTopic returns a topic with its full message history.
func (h *TopicHandler) GetTopic(c *gin.Context) {
	topicID, err := strconv.Atoi(c.Param("topic_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}

	ctx := c.Request.Context()
	topic, err := h.topicRepo.GetTopic(ctx, topicID)
	if errors.Is(err, repositories.ErrTopicNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load topic"})
		return
	}

	messages, err := h.messageRepo.ListMessages(ctx, topicID)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	c.JSON(http.StatusOK, gin.H{"topic": topic, "messages": messages})
}
