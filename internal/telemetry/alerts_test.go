package telemetry

import (
	"os"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// TestAlertsFileValid verifies the Prometheus alerts configuration is valid YAML.
func TestAlertsFileValid(t *testing.T) {
	alertsPath := "../../deploy/prometheus/alerts.yml"

	data, err := os.ReadFile(alertsPath)
	if err != nil {
		t.Skipf("Skipping test: alerts file not found at %s", alertsPath)
		return
	}

	var config map[string]interface{}
	if err := yaml.Unmarshal(data, &config); err != nil {
		t.Fatalf("Invalid YAML in alerts.yml: %v", err)
	}

	groups, ok := config["groups"]
	if !ok {
		t.Error("alerts.yml missing 'groups' key")
		return
	}

	groupsList, ok := groups.([]interface{})
	if !ok || len(groupsList) == 0 {
		t.Error("alerts.yml 'groups' is empty or invalid")
	}
}

// TestCriticalAlertsPresent verifies critical alerts are defined.
func TestCriticalAlertsPresent(t *testing.T) {
	alertsPath := "../../deploy/prometheus/alerts.yml"

	data, err := os.ReadFile(alertsPath)
	if err != nil {
		t.Skipf("Skipping test: alerts file not found at %s", alertsPath)
		return
	}

	content := string(data)

	criticalAlerts := []string{
		"HighAPIErrorRate",
		"SchedulerStuck",
		"DatabaseDown",
		"WebhookDeliveryFailures",
	}

	for _, alertName := range criticalAlerts {
		if !strings.Contains(content, alertName) {
			t.Errorf("Critical alert '%s' not found in alerts.yml", alertName)
		}
	}
}

// TestAlertLabels verifies alerts have required labels.
func TestAlertLabels(t *testing.T) {
	alertsPath := "../../deploy/prometheus/alerts.yml"

	data, err := os.ReadFile(alertsPath)
	if err != nil {
		t.Skipf("Skipping test: alerts file not found at %s", alertsPath)
		return
	}

	type Alert struct {
		Alert       string            `yaml:"alert"`
		Expr        string            `yaml:"expr"`
		For         string            `yaml:"for"`
		Labels      map[string]string `yaml:"labels"`
		Annotations map[string]string `yaml:"annotations"`
	}

	type Group struct {
		Name  string  `yaml:"name"`
		Rules []Alert `yaml:"rules"`
	}

	type Config struct {
		Groups []Group `yaml:"groups"`
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		t.Fatalf("Failed to parse alerts.yml: %v", err)
	}

	for _, group := range config.Groups {
		for _, alert := range group.Rules {
			if alert.Alert == "" {
				continue
			}

			if _, ok := alert.Labels["severity"]; !ok {
				t.Errorf("Alert '%s' missing 'severity' label", alert.Alert)
			}

			if len(alert.Annotations) == 0 {
				t.Errorf("Alert '%s' missing annotations", alert.Alert)
			}

			if _, ok := alert.Annotations["summary"]; !ok {
				t.Errorf("Alert '%s' missing 'summary' annotation", alert.Alert)
			}
		}
	}
}

// TestMetricsExist verifies key metrics used in alerts actually exist.
func TestMetricsExist(t *testing.T) {
	expectedMetrics := []string{
		"cadence_api_request_duration_seconds",
		"cadence_api_requests_total",
		"cadence_scheduler_ticks_total",
		"cadence_scheduler_errors_total",
		"cadence_database_connections_active",
		"cadence_webhook_deliveries_total",
		"cadence_leader_election_status",
	}

	data, err := os.ReadFile("metrics.go")
	if err != nil {
		t.Fatalf("Failed to read metrics.go: %v", err)
	}

	content := string(data)

	for _, metric := range expectedMetrics {
		if !strings.Contains(content, metric) {
			t.Errorf("Expected metric '%s' not found in metrics.go", metric)
		}
	}
}
