package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"perfeval/internal/platform/querier"
)

const (
	ActionGradeBandsReplaced = "evaluation.grade_bands.replaced"
	ActionRecordDeactivated  = "evaluation.record.deactivated"
)

type Event struct {
	ID         string          `json:"id"`
	ActorID    string          `json:"actorId"`
	Action     string          `json:"action"`
	EntityType string          `json:"entityType"`
	EntityID   string          `json:"entityId"`
	RequestID  string          `json:"requestId"`
	IP         string          `json:"ip"`
	CreatedAt  time.Time       `json:"createdAt"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
}

type Filter struct {
	Action     string
	EntityType string
	ActorID    string
}

// Log persists audit events for administrative changes.
type Log interface {
	Record(ctx context.Context, evt Event, before, after any) error
	// List returns one page of matching events, newest first, and the number
	// of events matching the filter.
	List(ctx context.Context, filter Filter, limit, offset int) ([]Event, int, error)
}

func marshalState(before, after any) (json.RawMessage, json.RawMessage, error) {
	var beforeJSON, afterJSON json.RawMessage
	if before != nil {
		payload, err := json.Marshal(before)
		if err != nil {
			return nil, nil, err
		}
		beforeJSON = payload
	}
	if after != nil {
		payload, err := json.Marshal(after)
		if err != nil {
			return nil, nil, err
		}
		afterJSON = payload
	}
	return beforeJSON, afterJSON, nil
}

type Service struct {
	DB    querier.Querier
	IPKey []byte
}

func New(db querier.Querier, ipKey []byte) *Service {
	return &Service{DB: db, IPKey: ipKey}
}

func (s *Service) Record(ctx context.Context, evt Event, before, after any) error {
	beforeJSON, afterJSON, err := marshalState(before, after)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(ctx, `
    INSERT INTO evaluation_audit_events (actor_id, action, entity_type, entity_id, before_json, after_json, request_id, ip)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
  `, evt.ActorID, evt.Action, evt.EntityType, evt.EntityID, []byte(beforeJSON), []byte(afterJSON), evt.RequestID, PseudonymizeIP(s.IPKey, evt.IP))
	return err
}

func (f Filter) where() (string, []any) {
	clause := " WHERE true"
	var args []any
	if f.Action != "" {
		args = append(args, f.Action)
		clause += fmt.Sprintf(" AND action = $%d", len(args))
	}
	if f.EntityType != "" {
		args = append(args, f.EntityType)
		clause += fmt.Sprintf(" AND entity_type = $%d", len(args))
	}
	if f.ActorID != "" {
		args = append(args, f.ActorID)
		clause += fmt.Sprintf(" AND actor_id = $%d", len(args))
	}
	return clause, args
}

func (s *Service) List(ctx context.Context, filter Filter, limit, offset int) ([]Event, int, error) {
	where, args := filter.where()
	var total int
	if err := s.DB.QueryRow(ctx, "SELECT COUNT(1) FROM evaluation_audit_events"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id::text, actor_id, action, entity_type, entity_id, request_id, ip, created_at, before_json, after_json
    FROM evaluation_audit_events` + where
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var evt Event
		var before, after []byte
		if err := rows.Scan(&evt.ID, &evt.ActorID, &evt.Action, &evt.EntityType, &evt.EntityID, &evt.RequestID, &evt.IP, &evt.CreatedAt, &before, &after); err != nil {
			return nil, 0, err
		}
		evt.Before, evt.After = before, after
		out = append(out, evt)
	}
	return out, total, rows.Err()
}

// Memory keeps events in process for the memory store driver and tests.
type Memory struct {
	mu     sync.Mutex
	events []Event
	ipKey  []byte
	now    func() time.Time
}

func NewMemory(ipKey []byte) *Memory {
	return &Memory{ipKey: ipKey, now: func() time.Time { return time.Now().UTC() }}
}

func (m *Memory) Record(ctx context.Context, evt Event, before, after any) error {
	beforeJSON, afterJSON, err := marshalState(before, after)
	if err != nil {
		return err
	}
	evt.ID = uuid.NewString()
	evt.IP = PseudonymizeIP(m.ipKey, evt.IP)
	evt.CreatedAt = m.now()
	evt.Before, evt.After = beforeJSON, afterJSON

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *Memory) List(ctx context.Context, filter Filter, limit, offset int) ([]Event, int, error) {
	m.mu.Lock()
	matched := []Event{}
	for _, evt := range m.events {
		if filter.Action != "" && evt.Action != filter.Action {
			continue
		}
		if filter.EntityType != "" && evt.EntityType != filter.EntityType {
			continue
		}
		if filter.ActorID != "" && evt.ActorID != filter.ActorID {
			continue
		}
		matched = append(matched, evt)
	}
	m.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	start := min(offset, len(matched))
	end := min(start+limit, len(matched))
	return matched[start:end], len(matched), nil
}
