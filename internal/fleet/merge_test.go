package fleet

import (
	"encoding/json"
	"testing"

	"github.com/rainadr/service-fleet-commander/internal/models"
)

func strPtr(s string) *string { return &s }

func TestMergeConfigs_BackfillsOmittedSecrets(t *testing.T) {
	incoming := &models.BotConfig{Enabled: true, Nickname: "new nick"}
	existing := &models.BotConfig{
		Login:       strPtr("user"),
		Password:    strPtr("hunter2"),
		ParentalPIN: strPtr("1234"),
	}

	merged := MergeConfigs(incoming, existing)
	if merged.Login == nil || *merged.Login != "user" {
		t.Fatalf("login not backfilled: %v", merged.Login)
	}
	if merged.Password == nil || *merged.Password != "hunter2" {
		t.Fatalf("password not backfilled: %v", merged.Password)
	}
	if merged.ParentalPIN == nil || *merged.ParentalPIN != "1234" {
		t.Fatalf("parental pin not backfilled: %v", merged.ParentalPIN)
	}
	if !merged.Enabled || merged.Nickname != "new nick" {
		t.Fatalf("incoming fields lost: %+v", merged)
	}
}

func TestMergeConfigs_ExplicitIncomingSecretWins(t *testing.T) {
	incoming := &models.BotConfig{Password: strPtr("newpass")}
	existing := &models.BotConfig{Password: strPtr("oldpass")}

	merged := MergeConfigs(incoming, existing)
	if *merged.Password != "newpass" {
		t.Fatalf("expected incoming password to win, got %q", *merged.Password)
	}
}

func TestMergeConfigs_ExplicitEmptySecretClearsExistingValue(t *testing.T) {
	incoming := &models.BotConfig{Password: strPtr("")}
	existing := &models.BotConfig{Password: strPtr("oldpass")}

	merged := MergeConfigs(incoming, existing)
	if merged.Password == nil || *merged.Password != "" {
		t.Fatalf("an explicitly empty secret must not be backfilled, got %v", merged.Password)
	}
}

func TestMergeConfigs_ExtensionFieldsMergedIncomingWins(t *testing.T) {
	incoming := &models.BotConfig{Extra: map[string]json.RawMessage{
		"custom_flag": json.RawMessage(`true`),
		"shared":      json.RawMessage(`"incoming"`),
	}}
	existing := &models.BotConfig{Extra: map[string]json.RawMessage{
		"shared":   json.RawMessage(`"existing"`),
		"old_only": json.RawMessage(`7`),
	}}

	merged := MergeConfigs(incoming, existing)
	if string(merged.Extra["custom_flag"]) != `true` {
		t.Fatalf("incoming extension lost: %s", merged.Extra["custom_flag"])
	}
	if string(merged.Extra["shared"]) != `"incoming"` {
		t.Fatalf("incoming must win on conflict, got %s", merged.Extra["shared"])
	}
	if string(merged.Extra["old_only"]) != `7` {
		t.Fatalf("existing-only extension lost: %s", merged.Extra["old_only"])
	}
}

func TestMergeConfigs_SerializationFlagsForcedOff(t *testing.T) {
	incoming := &models.BotConfig{SerializeAll: true, SerializeHelperFields: true}

	merged := MergeConfigs(incoming, &models.BotConfig{})
	if merged.SerializeAll || merged.SerializeHelperFields {
		t.Fatal("serialization control flags must never survive a merge")
	}
}

func TestMergeConfigs_NoAliasing(t *testing.T) {
	incoming := &models.BotConfig{
		Login: strPtr("user"),
		Extra: map[string]json.RawMessage{"k": json.RawMessage(`1`)},
	}
	existing := &models.BotConfig{
		Password: strPtr("secret"),
		Extra:    map[string]json.RawMessage{"e": json.RawMessage(`2`)},
	}

	merged := MergeConfigs(incoming, existing)

	*merged.Login = "mutated"
	*merged.Password = "mutated"
	merged.Extra["k"] = json.RawMessage(`99`)
	merged.Extra["e"][0] = '9'

	if *incoming.Login != "user" {
		t.Fatal("merged login aliases incoming")
	}
	if *existing.Password != "secret" {
		t.Fatal("merged password aliases existing")
	}
	if string(incoming.Extra["k"]) != `1` {
		t.Fatal("merged extension map aliases incoming")
	}
	if string(existing.Extra["e"]) != `2` {
		t.Fatal("merged extension value aliases existing")
	}
}

func TestMergeConfigs_NilExisting(t *testing.T) {
	incoming := &models.BotConfig{Enabled: true, Login: strPtr("user")}

	merged := MergeConfigs(incoming, nil)
	if !merged.Enabled || merged.Login == nil || *merged.Login != "user" {
		t.Fatalf("unexpected merge against nil existing: %+v", merged)
	}
}

func TestMergeConfigs_Idempotent(t *testing.T) {
	incoming := &models.BotConfig{
		Nickname: "nick",
		Login:    strPtr("user"),
		Extra:    map[string]json.RawMessage{"k": json.RawMessage(`1`)},
	}
	existing := &models.BotConfig{
		Password: strPtr("secret"),
		Extra:    map[string]json.RawMessage{"e": json.RawMessage(`2`)},
	}

	once := MergeConfigs(incoming, existing)
	twice := MergeConfigs(once, existing)

	a, err := json.Marshal(once)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := json.Marshal(twice)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("merge is not idempotent:\n%s\n%s", a, b)
	}
}
