package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"forum-service/internal/models"
	"forum-service/internal/repositories"
)

var (
	_ repositories.UserRepository    = (*UserRepositoryMock)(nil)
	_ repositories.SessionRepository = (*SessionRepositoryMock)(nil)
	_ repositories.TopicRepository   = (*TopicRepositoryMock)(nil)
	_ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) CreateUser(ctx context.Context, username, password string) (models.User, error) {
	args := m.Called(ctx, username, password)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) VerifyUser(ctx context.Context, username, password string) (models.User, error) {
	args := m.Called(ctx, username, password)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) UserExists(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

type SessionRepositoryMock struct {
	mock.Mock
}

func (m *SessionRepositoryMock) CreateSession(ctx context.Context, userID int) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *SessionRepositoryMock) GetUserBySession(ctx context.Context, token string) (models.User, error) {
	args := m.Called(ctx, token)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *SessionRepositoryMock) DeleteSession(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

type TopicRepositoryMock struct {
	mock.Mock
}

func (m *TopicRepositoryMock) CreateTopic(ctx context.Context, title string, userID int) (models.Topic, error) {
	args := m.Called(ctx, title, userID)
	var topic models.Topic
	if val := args.Get(0); val != nil {
		topic = val.(models.Topic)
	}
	return topic, args.Error(1)
}

func (m *TopicRepositoryMock) GetTopic(ctx context.Context, topicID int) (models.Topic, error) {
	args := m.Called(ctx, topicID)
	var topic models.Topic
	if val := args.Get(0); val != nil {
		topic = val.(models.Topic)
	}
	return topic, args.Error(1)
}

func (m *TopicRepositoryMock) ListTopics(ctx context.Context) ([]models.Topic, error) {
	args := m.Called(ctx)
	var topics []models.Topic
	if val := args.Get(0); val != nil {
		topics = val.([]models.Topic)
	}
	return topics, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, topicID int, parentID *int, userID int, body string) (models.Message, error) {
	args := m.Called(ctx, topicID, parentID, userID, body)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context, topicID int) ([]models.Message, error) {
	args := m.Called(ctx, topicID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) SetReaction(ctx context.Context, messageID int, userID int, value int) (models.Message, error) {
	args := m.Called(ctx, messageID, userID, value)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) UpdateMessage(ctx context.Context, messageID int, userID int, body string) (models.Message, error) {
	args := m.Called(ctx, messageID, userID, body)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}
