// Package device implements the realtime dispenser registry on Redis:
// last-reported state, TTL-based presence, and the command queue the
// physical dispenser polls.
package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pildhora/backend/pkg/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	stateKeyPrefix    = "devices:state:"
	presenceKeyPrefix = "devices:presence:"
	commandKeyPrefix  = "devices:commands:"
	feedKeyPrefix     = "patients:feed:"

	// Presence expires without a heartbeat; dispensers report every 30s.
	presenceTTL = 60 * time.Second

	// Caregiver feeds keep a bounded window of recent events.
	feedMaxLength = 200
)

// Registry is the Redis-backed realtime view of dispenser devices
type Registry struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRegistry creates a device registry on an established Redis client
func NewRegistry(client *redis.Client, logger *zap.Logger) *Registry {
	return &Registry{
		client: client,
		logger: logger,
	}
}

// NewClient connects to Redis and verifies the connection
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// Heartbeat records the device's reported state and refreshes its
// presence key. Online status is derived from the presence TTL, not
// stored explicitly.
func (r *Registry) Heartbeat(ctx context.Context, state *model.DeviceState) error {
	state.LastSeen = time.Now()
	state.Status = "online"

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal device state: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.Set(ctx, stateKeyPrefix+state.DeviceID, data, 0)
	pipe.Set(ctx, presenceKeyPrefix+state.DeviceID, state.LastSeen.Format(time.RFC3339), presenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("failed to record heartbeat", zap.Error(err), zap.String("device_id", state.DeviceID))
		return fmt.Errorf("failed to record heartbeat: %w", err)
	}

	return nil
}

// State returns the last reported device state with Status downgraded
// to offline when the presence key has expired. A device that never
// reported is offline with a zero LastSeen.
func (r *Registry) State(ctx context.Context, deviceID string) (*model.DeviceState, error) {
	data, err := r.client.Get(ctx, stateKeyPrefix+deviceID).Result()
	if err == redis.Nil {
		return &model.DeviceState{DeviceID: deviceID, Status: "offline"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device state: %w", err)
	}

	var state model.DeviceState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal device state: %w", err)
	}

	alive, err := r.client.Exists(ctx, presenceKeyPrefix+deviceID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check device presence: %w", err)
	}
	if alive == 0 {
		state.Status = "offline"
	}

	return &state, nil
}

// SendCommand queues a command for the dispenser. The device drains its
// command list on each poll, oldest first.
func (r *Registry) SendCommand(ctx context.Context, cmd *model.DeviceCommand) error {
	if cmd.ID == "" {
		cmd.ID = uuid.New().String()
	}
	cmd.IssuedAt = time.Now()

	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	if err := r.client.RPush(ctx, commandKeyPrefix+cmd.DeviceID, data).Err(); err != nil {
		r.logger.Error("failed to queue command",
			zap.Error(err),
			zap.String("device_id", cmd.DeviceID),
			zap.String("type", string(cmd.Type)),
		)
		return fmt.Errorf("failed to queue command: %w", err)
	}

	r.logger.Info("command queued",
		zap.String("device_id", cmd.DeviceID),
		zap.String("type", string(cmd.Type)),
	)

	return nil
}

// DrainCommands pops all queued commands for a dispenser, oldest first.
// Called by the device on each poll; drained commands are gone.
func (r *Registry) DrainCommands(ctx context.Context, deviceID string) ([]model.DeviceCommand, error) {
	key := commandKeyPrefix + deviceID

	pipe := r.client.TxPipeline()
	listCmd := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to drain commands: %w", err)
	}

	raw, err := listCmd.Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read drained commands: %w", err)
	}

	commands := make([]model.DeviceCommand, 0, len(raw))
	for _, item := range raw {
		var cmd model.DeviceCommand
		if err := json.Unmarshal([]byte(item), &cmd); err != nil {
			r.logger.Warn("discarding malformed command", zap.Error(err), zap.String("device_id", deviceID))
			continue
		}
		commands = append(commands, cmd)
	}

	return commands, nil
}

// PushTopology sends the dispenser its alarm schedule as a topo command
func (r *Registry) PushTopology(ctx context.Context, deviceID, issuedBy string, configs []model.AlarmConfig) error {
	payload, err := json.Marshal(configs)
	if err != nil {
		return fmt.Errorf("failed to marshal topology: %w", err)
	}

	return r.SendCommand(ctx, &model.DeviceCommand{
		DeviceID: deviceID,
		Type:     model.CommandTopo,
		Payload:  payload,
		IssuedBy: issuedBy,
	})
}

// ErrNotificationsDisabled is returned when a dispenser has reported
// its local alarm permission as disabled. Distinct from a registration
// failure: the schedule is kept and re-registered once the device
// re-enables notifications.
var ErrNotificationsDisabled = errors.New("device notifications disabled")

const alarmKeyPrefix = "devices:alarms:"

// RegisterAlarm writes one alarm config into the device's realtime
// alarm set and returns the registration identifier needed to cancel
// it later.
func (r *Registry) RegisterAlarm(ctx context.Context, deviceID string, cfg model.AlarmConfig) (string, error) {
	state, err := r.State(ctx, deviceID)
	if err != nil {
		return "", err
	}
	if state.NotificationsEnabled != nil && !*state.NotificationsEnabled {
		return "", ErrNotificationsDisabled
	}

	registrationID := uuid.New().String()
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to marshal alarm config: %w", err)
	}

	if err := r.client.HSet(ctx, alarmKeyPrefix+deviceID, registrationID, data).Err(); err != nil {
		r.logger.Error("failed to register alarm",
			zap.Error(err),
			zap.String("device_id", deviceID),
			zap.String("medication_id", cfg.MedicationID),
		)
		return "", fmt.Errorf("failed to register alarm: %w", err)
	}

	return registrationID, nil
}

// CancelAlarm removes a previously registered alarm. Cancelling an
// unknown registration is not an error; the dispenser may have pruned
// it already.
func (r *Registry) CancelAlarm(ctx context.Context, deviceID, registrationID string) error {
	if err := r.client.HDel(ctx, alarmKeyPrefix+deviceID, registrationID).Err(); err != nil {
		r.logger.Error("failed to cancel alarm",
			zap.Error(err),
			zap.String("device_id", deviceID),
			zap.String("registration_id", registrationID),
		)
		return fmt.Errorf("failed to cancel alarm: %w", err)
	}

	return nil
}

// PublishEvent appends a delivered medication event to the patient's
// caregiver feed, trimming the feed to its bounded window.
func (r *Registry) PublishEvent(ctx context.Context, event *model.MedicationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	key := feedKeyPrefix + event.PatientID
	pipe := r.client.Pipeline()
	pipe.RPush(ctx, key, data)
	pipe.LTrim(ctx, key, -feedMaxLength, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Ping verifies the Redis connection is alive
func (r *Registry) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying Redis connection
func (r *Registry) Close() error {
	return r.client.Close()
}
