package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/replyflow/replyflow/pkg/models"
)

// MemoryStore is the in-process Store used by tests and local runs.
type MemoryStore struct {
	mu          sync.RWMutex
	messages    map[string][]*models.ConversationMessage // by contact id
	contacts    map[string]*models.Contact               // by sender|merchant
	contactByID map[string]*models.Contact
	ingestions  map[string]*models.IngestionRecord
	workflows   map[string][]*models.WorkflowGraph // by merchant id
	settings    map[string]*models.MerchantSettings
	bots        map[string]*models.BotCredentials
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages:    make(map[string][]*models.ConversationMessage),
		contacts:    make(map[string]*models.Contact),
		contactByID: make(map[string]*models.Contact),
		ingestions:  make(map[string]*models.IngestionRecord),
		workflows:   make(map[string][]*models.WorkflowGraph),
		settings:    make(map[string]*models.MerchantSettings),
		bots:        make(map[string]*models.BotCredentials),
	}
}

func (s *MemoryStore) InsertMessage(_ context.Context, msg *models.ConversationMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *msg
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}

	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	s.messages[stored.ContactID] = append(s.messages[stored.ContactID], &stored)

	return nil
}

func (s *MemoryStore) RecentMessages(_ context.Context, contactID string, limit int) ([]*models.ConversationMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.messages[contactID]

	start := len(all) - limit
	if limit <= 0 || start < 0 {
		start = 0
	}

	recent := make([]*models.ConversationMessage, len(all)-start)
	copy(recent, all[start:])

	sort.SliceStable(recent, func(i, j int) bool {
		return recent[i].CreatedAt.Before(recent[j].CreatedAt)
	})

	return recent, nil
}

func (s *MemoryStore) CountMessages(_ context.Context, contactID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.messages[contactID]), nil
}

func (s *MemoryStore) GetOrCreateContact(_ context.Context, senderID, merchantID string) (*models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := senderID + "|" + merchantID
	if contact, ok := s.contacts[key]; ok {
		return contact, nil
	}

	contact := &models.Contact{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		MerchantID: merchantID,
		CreatedAt:  time.Now(),
	}
	s.contacts[key] = contact
	s.contactByID[contact.ID] = contact

	return contact, nil
}

func (s *MemoryStore) MergeContactTags(_ context.Context, contactID string, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contact, ok := s.contactByID[contactID]
	if !ok {
		return ErrContactNotFound
	}

	existing := make(map[string]bool, len(contact.Tags))
	for _, tag := range contact.Tags {
		existing[tag] = true
	}

	for _, tag := range tags {
		if !existing[tag] {
			contact.Tags = append(contact.Tags, tag)
			existing[tag] = true
		}
	}

	return nil
}

func (s *MemoryStore) SaveIngestion(_ context.Context, rec *models.IngestionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *rec
	if stored.ID == "" {
		stored.ID = uuid.New().String()
		rec.ID = stored.ID
	}

	if stored.ReceivedAt.IsZero() {
		stored.ReceivedAt = time.Now()
	}

	s.ingestions[stored.ID] = &stored

	return nil
}

// LatestIngestion returns the most recently received audit record.
// Test helper, not part of the Store contract.
func (s *MemoryStore) LatestIngestion(_ context.Context) (*models.IngestionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *models.IngestionRecord

	for _, rec := range s.ingestions {
		if latest == nil || rec.ReceivedAt.After(latest.ReceivedAt) {
			latest = rec
		}
	}

	if latest == nil {
		return nil, ErrIngestionNotFound
	}

	copied := *latest

	return &copied, nil
}

func (s *MemoryStore) UpdateIngestionStatus(_ context.Context, id string, status models.IngestionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.ingestions[id]
	if !ok {
		return ErrIngestionNotFound
	}

	rec.Status = status

	return nil
}

func (s *MemoryStore) ActiveWorkflows(_ context.Context, merchantID string) ([]*models.WorkflowGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*models.WorkflowGraph

	for _, wf := range s.workflows[merchantID] {
		if wf.Active {
			active = append(active, wf)
		}
	}

	return active, nil
}

// SaveWorkflow registers a graph; used by tests and seed tooling.
func (s *MemoryStore) SaveWorkflow(_ context.Context, wf *models.WorkflowGraph) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if wf.ID == "" {
		wf.ID = uuid.New().String()
	}

	s.workflows[wf.MerchantID] = append(s.workflows[wf.MerchantID], wf)

	return nil
}

func (s *MemoryStore) MerchantSettings(_ context.Context, merchantID string) (*models.MerchantSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, ok := s.settings[merchantID]
	if !ok {
		return nil, ErrSettingsNotFound
	}

	return settings, nil
}

// SaveMerchantSettings registers settings; used by tests and seed tooling.
func (s *MemoryStore) SaveMerchantSettings(_ context.Context, settings *models.MerchantSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settings[settings.MerchantID] = settings

	return nil
}

func (s *MemoryStore) BotCredentials(_ context.Context, botID string) (*models.BotCredentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bot, ok := s.bots[botID]
	if !ok {
		return nil, ErrBotNotFound
	}

	return bot, nil
}

// SaveBotCredentials registers a bot; used by tests and seed tooling.
func (s *MemoryStore) SaveBotCredentials(_ context.Context, bot *models.BotCredentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bots[bot.BotID] = bot

	return nil
}

func (s *MemoryStore) HealthCheck(_ context.Context) error {
	return nil
}

func (s *MemoryStore) Close(_ context.Context) error {
	return nil
}
