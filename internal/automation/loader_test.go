package automation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeRulesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write rules file: %v", err)
	}
	return path
}

func TestLoadRulesFile(t *testing.T) {
	path := writeRulesFile(t, `
rules:
  - name: escalate urgent bugs
    active: true
    trigger: task_created
    conditions:
      - kind: priority_equals
        value: urgent
      - kind: has_tag
        value: bug
    actions:
      - kind: assign_collaborator
        value: oncall
      - kind: send_notification
        value: urgent bug filed
  - name: archive follow-up
    active: false
    trigger: task_completed
    actions:
      - kind: create_related_task
`)

	rules, err := LoadRulesFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}

	first := rules[0]
	if first.Name != "escalate urgent bugs" || first.Trigger != TriggerTaskCreated {
		t.Errorf("unexpected rule %+v", first)
	}
	if len(first.Conditions) != 2 || first.Conditions[1].Kind != CondHasTag {
		t.Errorf("conditions not parsed: %+v", first.Conditions)
	}
	if len(first.Actions) != 2 || first.Actions[0].Value != "oncall" {
		t.Errorf("actions not parsed: %+v", first.Actions)
	}
	if rules[1].Active {
		t.Error("inactive flag not parsed")
	}
}

func TestLoadRulesFileRejectsBadTrigger(t *testing.T) {
	path := writeRulesFile(t, `
rules:
  - name: broken
    trigger: on_full_moon
    actions:
      - kind: add_tag
        value: x
`)

	_, err := LoadRulesFile(path)
	if err == nil {
		t.Fatal("expected error for unknown trigger")
	}
	if !strings.Contains(err.Error(), "unknown trigger") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestLoadRulesFileRejectsUnnamed(t *testing.T) {
	path := writeRulesFile(t, `
rules:
  - trigger: task_created
    actions:
      - kind: add_tag
        value: x
`)

	if _, err := LoadRulesFile(path); err == nil {
		t.Fatal("expected error for unnamed rule")
	}
}

func TestLoadRulesFileMissing(t *testing.T) {
	if _, err := LoadRulesFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
