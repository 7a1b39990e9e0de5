package agent

import (
	"context"
	"errors"

	"github.com/sony/gobreaker/v2"
	"github.com/voqo-ai/voqo/internal/database"
	"github.com/voqo-ai/voqo/internal/logging"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrInvalidAgentResult          = errors.New("invalid result type, it should be pointer to Agent struct")
	ErrInvalidFunctionsSliceResult = errors.New("invalid result type, it should be slice of CustomFunction")
)

type AgentRepository struct {
	DBConn         *gorm.DB
	CircuitBreaker *gobreaker.CircuitBreaker[any]
}

func NewRepository(dbConn *gorm.DB) *AgentRepository {
	cbSettings := database.GetCircuitBreakerSettings()

	return &AgentRepository{
		DBConn:         dbConn,
		CircuitBreaker: gobreaker.NewCircuitBreaker[any](cbSettings),
	}
}

// GetAgentByID returns the agent, or nil when no such agent exists.
func (agentRepository *AgentRepository) GetAgentByID(ctx context.Context, agentID string) (*Agent, error) {
	result, err := agentRepository.CircuitBreaker.Execute(func() (any, error) {
		var agent Agent

		err := agentRepository.DBConn.WithContext(ctx).
			Where("id = ?", agentID).
			First(&agent).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return (*Agent)(nil), nil
		}

		if err != nil {
			logging.Logger.Error("[GetAgentByID] Failed to fetch agent",
				zap.String("agent_id", agentID),
				zap.String("error", err.Error()),
			)

			return nil, err
		}

		return &agent, nil
	})
	if err != nil {
		return nil, err
	}

	agent, ok := result.(*Agent)
	if !ok {
		return nil, ErrInvalidAgentResult
	}

	return agent, nil
}

// ListEnabledFunctions returns the enabled custom functions for an
// agent, in declaration order. Disabled functions are never exposed to
// the voice session.
func (agentRepository *AgentRepository) ListEnabledFunctions(
	ctx context.Context,
	agentID string,
) ([]CustomFunction, error) {
	result, err := agentRepository.CircuitBreaker.Execute(func() (any, error) {
		var functions []CustomFunction

		err := agentRepository.DBConn.WithContext(ctx).
			Where("agent_id = ? AND enabled = ?", agentID, true).
			Order("created_at ASC").
			Find(&functions).Error
		if err != nil {
			logging.Logger.Error("[ListEnabledFunctions] Failed to fetch custom functions",
				zap.String("agent_id", agentID),
				zap.String("error", err.Error()),
			)

			return nil, err
		}

		return functions, nil
	})
	if err != nil {
		return nil, err
	}

	functions, ok := result.([]CustomFunction)
	if !ok {
		return nil, ErrInvalidFunctionsSliceResult
	}

	return functions, nil
}
