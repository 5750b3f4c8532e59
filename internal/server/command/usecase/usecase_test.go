package usecase

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rainadr/service-fleet-commander/internal/fleet"
	"github.com/rainadr/service-fleet-commander/internal/models"
	"github.com/rainadr/service-fleet-commander/pkg/logger"
)

// testWorker implements fleet.Worker with canned responses.
type testWorker struct {
	mu   sync.Mutex
	name string
	cfg  *models.BotConfig

	pauseOK    bool
	pauseMsg   string
	redeemFn   func(key string) *models.RedemptionResult
	inputOK    bool
	startDelay time.Duration
}

func newTestWorker(name string) *testWorker {
	return &testWorker{
		name:    name,
		cfg:     &models.BotConfig{},
		pauseOK: true,
		inputOK: true,
	}
}

func (w *testWorker) Name() string  { return w.name }
func (w *testWorker) State() string { return "running" }

func (w *testWorker) Config() *models.BotConfig {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cfg.Clone()
}

func (w *testWorker) SetConfig(cfg *models.BotConfig) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cfg = cfg.Clone()
}

func (w *testWorker) Start() (bool, string) {
	if w.startDelay > 0 {
		time.Sleep(w.startDelay)
	}
	return true, "Bot " + w.name + " started"
}

func (w *testWorker) Stop() (bool, string) { return true, "Bot " + w.name + " stopped" }

func (w *testWorker) Pause(permanent bool, resumeIn time.Duration) (bool, string) {
	return w.pauseOK, w.pauseMsg
}

func (w *testWorker) Resume() (bool, string) { return true, "" }

func (w *testWorker) DeleteAllFiles() bool { return true }

func (w *testWorker) UsedAndUnusedKeys() (map[string]string, map[string]string) {
	return map[string]string{"USED": "old"}, map[string]string{"FRESH": "new"}
}

func (w *testWorker) AddBackgroundKeys(keys map[string]string) {}

func (w *testWorker) RedeemKey(ctx context.Context, key string) *models.RedemptionResult {
	if w.redeemFn != nil {
		return w.redeemFn(key)
	}
	return nil
}

func (w *testWorker) SetInput(kind models.InputType, value string) bool { return w.inputOK }

func (w *testWorker) GenerateTwoFactorToken() (bool, string, string) {
	return true, "123456", "Token generated"
}

func (w *testWorker) HandleTwoFactorConfirmations(ctx context.Context, accept bool) (bool, string) {
	return true, "Accepted 0 confirmations"
}

func (w *testWorker) Rename(newName string) bool {
	w.name = newName
	return true
}

// testStore implements store.Store in memory with per-name write failure
// injection.
type testStore struct {
	mu       sync.Mutex
	configs  map[string]*models.BotConfig
	failFor  map[string]bool
	deleted  []string
	renamed  [][2]string
	writeLog []string
}

func newTestStore() *testStore {
	return &testStore{
		configs: make(map[string]*models.BotConfig),
		failFor: make(map[string]bool),
	}
}

func (s *testStore) Write(ctx context.Context, name string, cfg *models.BotConfig) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[name] {
		return false
	}
	s.configs[name] = cfg.Clone()
	s.writeLog = append(s.writeLog, name)
	return true
}

func (s *testStore) Read(ctx context.Context, name string) (*models.BotConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, ok := s.configs[name]
	if !ok {
		return nil, false
	}
	return cfg.Clone(), true
}

func (s *testStore) Delete(ctx context.Context, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, name)
	delete(s.configs, name)
	return true
}

func (s *testStore) Rename(ctx context.Context, oldName, newName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.renamed = append(s.renamed, [2]string{oldName, newName})
	return true
}

func (s *testStore) Load(ctx context.Context) (map[string]*models.BotConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*models.BotConfig, len(s.configs))
	for name, cfg := range s.configs {
		out[name] = cfg.Clone()
	}
	return out, nil
}

func newTestUseCase(t *testing.T, workers ...*testWorker) (*UseCase, *testStore) {
	t.Helper()
	registry := fleet.NewRegistry()
	for _, w := range workers {
		if err := registry.Add(w); err != nil {
			t.Fatalf("failed to register %q: %v", w.Name(), err)
		}
	}
	st := newTestStore()
	uc := NewUseCase(UseCase{
		Registry: registry,
		Store:    st,
		Logger:   logger.NewNop(),
	})
	return uc, st
}

func TestStart_EveryTargetGetsItsOwnEntry(t *testing.T) {
	uc, _ := newTestUseCase(t, newTestWorker("A"), newTestWorker("B"), newTestWorker("C"))

	res := uc.Start(context.Background(), "all")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !res.Success {
		t.Fatal("expected overall success")
	}

	byName, ok := res.Data.(map[string]models.CommandResult)
	if !ok {
		t.Fatalf("unexpected data shape: %T", res.Data)
	}
	if len(byName) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(byName))
	}
	for _, name := range []string{"A", "B", "C"} {
		entry := byName[name]
		if !entry.Success || entry.Message != "Bot "+name+" started" {
			t.Fatalf("entry for %s: %+v", name, entry)
		}
	}
}

func TestStart_PositionalCorrespondenceUnderSkewedLatency(t *testing.T) {
	slow := newTestWorker("A")
	slow.startDelay = 30 * time.Millisecond
	uc, _ := newTestUseCase(t, slow, newTestWorker("B"))

	res := uc.Start(context.Background(), "A,B")
	byName := res.Data.(map[string]models.CommandResult)
	if byName["A"].Message != "Bot A started" || byName["B"].Message != "Bot B started" {
		t.Fatalf("results crossed between targets: %v", byName)
	}
}

func TestPause_PartialFailureIsDataNotError(t *testing.T) {
	good := newTestWorker("A")
	good.pauseMsg = "Bot A paused"
	bad := newTestWorker("B")
	bad.pauseOK = false
	bad.pauseMsg = "Bot B is not running"
	uc, _ := newTestUseCase(t, good, bad)

	res := uc.Pause(context.Background(), "all", false, nil)
	if res.Code != http.StatusOK {
		t.Fatalf("partial failure must still be 200, got %d", res.Code)
	}
	if res.Success {
		t.Fatal("expected overall failure")
	}
	if res.Message != "Bot A paused\nBot B is not running" {
		t.Fatalf("unexpected combined message: %q", res.Message)
	}

	byName := res.Data.(map[string]models.CommandResult)
	if !byName["A"].Success || byName["B"].Success {
		t.Fatalf("per-bot outcomes wrong: %v", byName)
	}
}

func TestResolveFailures_MapToStatusCodes(t *testing.T) {
	uc, _ := newTestUseCase(t, newTestWorker("A"))

	if res := uc.Start(context.Background(), "  "); res.Code != http.StatusBadRequest {
		t.Fatalf("empty input: expected 400, got %d", res.Code)
	}
	if res := uc.Start(context.Background(), "ghost"); res.Code != http.StatusNotFound {
		t.Fatalf("unknown names: expected 404, got %d", res.Code)
	}
}

func TestStart_DeduplicatesCaseVariants(t *testing.T) {
	uc, _ := newTestUseCase(t, newTestWorker("A"))

	res := uc.Start(context.Background(), "A,a,A")
	byName := res.Data.(map[string]models.CommandResult)
	if len(byName) != 1 {
		t.Fatalf("expected a single entry, got %v", byName)
	}
}

func TestRedeem_GridWithNeverAttemptedCell(t *testing.T) {
	attempted := newTestWorker("A")
	attempted.redeemFn = func(key string) *models.RedemptionResult {
		return &models.RedemptionResult{Status: models.RedemptionOK}
	}
	// B has no redeem behavior: every cell stays nil (never attempted).
	uc, _ := newTestUseCase(t, attempted, newTestWorker("B"))

	res := uc.Redeem(context.Background(), "all", []string{"KEY1", "KEY2"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Success {
		t.Fatal("a never-attempted cell must fail the overall outcome")
	}

	grid := res.Data.(map[string]map[string]*models.RedemptionResult)
	if len(grid) != 2 || len(grid["A"]) != 2 || len(grid["B"]) != 2 {
		t.Fatalf("expected a full 2x2 grid, got %v", grid)
	}
	if !grid["A"]["KEY1"].Succeeded() || !grid["A"]["KEY2"].Succeeded() {
		t.Fatalf("attempted cells wrong: %v", grid["A"])
	}
	if grid["B"]["KEY1"] != nil || grid["B"]["KEY2"] != nil {
		t.Fatal("never-attempted cells must stay nil in the response")
	}
}

func TestInput_UnknownTypeRejectedBeforeDispatch(t *testing.T) {
	uc, _ := newTestUseCase(t, newTestWorker("A"))

	res := uc.Input(context.Background(), "A", "favorite_color", "blue")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestInput_PerBotOutcome(t *testing.T) {
	good := newTestWorker("A")
	bad := newTestWorker("B")
	bad.inputOK = false
	uc, _ := newTestUseCase(t, good, bad)

	res := uc.Input(context.Background(), "all", "password", "hunter2")
	byName := res.Data.(map[string]bool)
	if !byName["A"] || byName["B"] {
		t.Fatalf("unexpected outcomes: %v", byName)
	}
	if res.Success {
		t.Fatal("expected overall failure")
	}
}

func TestKeys_PerBotLedgers(t *testing.T) {
	uc, _ := newTestUseCase(t, newTestWorker("A"))

	res := uc.Keys(context.Background(), "A")
	if res.Code != http.StatusOK || !res.Success {
		t.Fatalf("unexpected envelope: %+v", res)
	}

	byName := res.Data.(map[string]models.KeysResponse)
	if byName["A"].UsedKeys["USED"] != "old" || byName["A"].UnusedKeys["FRESH"] != "new" {
		t.Fatalf("ledger wrong: %+v", byName["A"])
	}
}

func TestUpdateConfig_NoCrossTargetSecretLeak(t *testing.T) {
	a := newTestWorker("A")
	secretA := "a-password"
	a.cfg = &models.BotConfig{Password: &secretA}
	b := newTestWorker("B")
	secretB := "b-password"
	b.cfg = &models.BotConfig{Password: &secretB}
	uc, st := newTestUseCase(t, a, b)

	res := uc.UpdateConfig(context.Background(), "all", []byte(`{"enabled":true,"nickname":"renamed"}`))
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}

	cfgA := a.Config()
	cfgB := b.Config()
	if cfgA.Password == nil || *cfgA.Password != "a-password" {
		t.Fatalf("A lost its own secret: %v", cfgA.Password)
	}
	if cfgB.Password == nil || *cfgB.Password != "b-password" {
		t.Fatalf("B lost its own secret: %v", cfgB.Password)
	}
	if !cfgA.Enabled || cfgA.Nickname != "renamed" {
		t.Fatalf("incoming fields not applied: %+v", cfgA)
	}

	// Persisted copies carry each bot's own secret too.
	if *st.configs["A"].Password != "a-password" || *st.configs["B"].Password != "b-password" {
		t.Fatal("persisted configs leaked secrets across targets")
	}
}

func TestUpdateConfig_PersistFailureMarksOnlyThatTarget(t *testing.T) {
	a := newTestWorker("A")
	b := newTestWorker("B")
	uc, st := newTestUseCase(t, a, b)
	st.failFor["B"] = true

	res := uc.UpdateConfig(context.Background(), "all", []byte(`{"enabled":true}`))
	if res.Success {
		t.Fatal("expected overall failure")
	}

	byName := res.Data.(map[string]bool)
	if !byName["A"] || byName["B"] {
		t.Fatalf("unexpected outcomes: %v", byName)
	}
	if !a.Config().Enabled {
		t.Fatal("successful target's config not applied")
	}
	if b.Config().Enabled {
		t.Fatal("failed persist must not apply the in-memory config")
	}
}

func TestUpdateConfig_MalformedBody(t *testing.T) {
	uc, _ := newTestUseCase(t, newTestWorker("A"))

	res := uc.UpdateConfig(context.Background(), "A", []byte(`{not json`))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUpdateConfig_ExtensionFieldsSurvive(t *testing.T) {
	a := newTestWorker("A")
	a.cfg = &models.BotConfig{Extra: map[string]json.RawMessage{"old_flag": json.RawMessage(`1`)}}
	uc, _ := newTestUseCase(t, a)

	res := uc.UpdateConfig(context.Background(), "A", []byte(`{"enabled":true,"new_flag":2}`))
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}

	cfg := a.Config()
	if string(cfg.Extra["old_flag"]) != `1` || string(cfg.Extra["new_flag"]) != `2` {
		t.Fatalf("extension fields lost: %v", cfg.Extra)
	}
}

func TestDeleteBots_RemovesRegistryAndStore(t *testing.T) {
	uc, st := newTestUseCase(t, newTestWorker("A"), newTestWorker("B"))

	res := uc.DeleteBots(context.Background(), "A")
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}

	if _, ok := uc.Registry.Get("A"); ok {
		t.Fatal("bot still registered")
	}
	if _, ok := uc.Registry.Get("B"); !ok {
		t.Fatal("unaddressed bot removed")
	}
	if len(st.deleted) != 1 || st.deleted[0] != "A" {
		t.Fatalf("store deletions wrong: %v", st.deleted)
	}
}

func TestRenameBot_ConflictRejectedWithoutMutation(t *testing.T) {
	a := newTestWorker("A")
	uc, st := newTestUseCase(t, a, newTestWorker("B"))

	res := uc.RenameBot(context.Background(), "A", "B")
	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
	if a.Name() != "A" {
		t.Fatalf("bot renamed despite conflict: %q", a.Name())
	}
	if len(st.renamed) != 0 {
		t.Fatal("store touched despite conflict")
	}
}

func TestRenameBot_UnknownBot(t *testing.T) {
	uc, _ := newTestUseCase(t, newTestWorker("A"))

	res := uc.RenameBot(context.Background(), "ghost", "anything")
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestRenameBot_Success(t *testing.T) {
	a := newTestWorker("A")
	uc, st := newTestUseCase(t, a)

	res := uc.RenameBot(context.Background(), "A", "Alpha")
	if res.Code != http.StatusOK || !res.Success {
		t.Fatalf("unexpected envelope: %+v", res)
	}
	if a.Name() != "Alpha" {
		t.Fatalf("worker not renamed: %q", a.Name())
	}
	if len(st.renamed) != 1 || st.renamed[0] != [2]string{"A", "Alpha"} {
		t.Fatalf("store rename wrong: %v", st.renamed)
	}
	if _, ok := uc.Registry.Get("alpha"); !ok {
		t.Fatal("registry key not moved")
	}
}

func TestListBots_SerializesHelperFields(t *testing.T) {
	a := newTestWorker("A")
	login := "user"
	password := "pw"
	a.cfg = &models.BotConfig{Login: &login, Password: &password}
	uc, _ := newTestUseCase(t, a)

	res := uc.ListBots(context.Background(), "A")
	byName := res.Data.(map[string]models.BotStatus)

	data, err := json.Marshal(byName["A"].Config)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("re-unmarshal: %v", err)
	}
	if string(out["s_has_credentials"]) != `true` {
		t.Fatalf("helper fields missing from listing: %s", data)
	}
}

func TestTwoFactorToken_PerBotTokens(t *testing.T) {
	uc, _ := newTestUseCase(t, newTestWorker("A"), newTestWorker("B"))

	res := uc.TwoFactorToken(context.Background(), "all")
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}

	byName := res.Data.(map[string]models.TwoFactorToken)
	if byName["A"].Token != "123456" || byName["B"].Token != "123456" {
		t.Fatalf("tokens missing: %v", byName)
	}
}
