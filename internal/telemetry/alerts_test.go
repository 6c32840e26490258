package telemetry

import (
	"os"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

const alertsPath = "../../deploy/prometheus/alerts.yml"

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

func loadAlerts(t *testing.T) []alertGroup {
	t.Helper()
	data, err := os.ReadFile(alertsPath)
	if err != nil {
		t.Skipf("alerts file not found at %s", alertsPath)
	}
	var cfg struct {
		Groups []alertGroup `yaml:"groups"`
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("invalid YAML in alerts.yml: %v", err)
	}
	if len(cfg.Groups) == 0 {
		t.Fatal("alerts.yml has no groups")
	}
	return cfg.Groups
}

func TestAlertsHaveSeverityAndSummary(t *testing.T) {
	for _, group := range loadAlerts(t) {
		for _, rule := range group.Rules {
			if rule.Alert == "" {
				continue
			}
			if _, ok := rule.Labels["severity"]; !ok {
				t.Errorf("alert %q missing severity label", rule.Alert)
			}
			if _, ok := rule.Annotations["summary"]; !ok {
				t.Errorf("alert %q missing summary annotation", rule.Alert)
			}
		}
	}
}

func TestCriticalAlertsPresent(t *testing.T) {
	names := map[string]bool{}
	for _, group := range loadAlerts(t) {
		for _, rule := range group.Rules {
			names[rule.Alert] = true
		}
	}
	for _, want := range []string{
		"SchedulerDown",
		"HighAPIErrorRate",
		"CapacityIntegrityAlert",
		"ExpirySweepStuck",
		"DatabaseDown",
	} {
		if !names[want] {
			t.Errorf("alert %q not defined", want)
		}
	}
}

// Every kfsh_ metric referenced by an alert expression must be declared.
func TestAlertMetricsDeclared(t *testing.T) {
	src, err := os.ReadFile("metrics.go")
	if err != nil {
		t.Fatalf("read metrics.go: %v", err)
	}
	declared := string(src)

	for _, group := range loadAlerts(t) {
		for _, rule := range group.Rules {
			for _, field := range strings.FieldsFunc(rule.Expr, func(r rune) bool {
				return !(r == '_' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
			}) {
				if strings.HasPrefix(field, "kfsh_") && !strings.Contains(declared, `"`+field+`"`) {
					t.Errorf("alert %q uses undeclared metric %s", rule.Alert, field)
				}
			}
		}
	}
}
