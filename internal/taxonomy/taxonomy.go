// Package taxonomy classifies queries into operational categories and drafts
// runbook outlines for coverage gaps.
package taxonomy

import (
	"fmt"
	"strings"
)

// Category is a static entry in the classification table: a keyword set plus
// canonical troubleshooting steps for that class of issue.
type Category struct {
	Name         string
	Keywords     []string
	CommonIssues []string
	TypicalSteps []string
}

// categories is the ordered classification table; Classify returns the first
// category with a keyword match, so earlier entries win on overlap.
var categories = []Category{
	{
		Name:         "jenkins",
		Keywords:     []string{"jenkins", "pipeline", "build", "ci/cd"},
		CommonIssues: []string{"pipeline failure", "build error", "deployment stuck"},
		TypicalSteps: []string{
			"Check Jenkins console output for error messages",
			"Verify pipeline configuration and syntax",
			"Check resource availability (disk space, memory)",
			"Restart Jenkins service if needed",
			"Review recent changes to pipeline scripts",
		},
	},
	{
		Name:         "kubernetes",
		Keywords:     []string{"kubernetes", "k8s", "pod", "node", "cluster", "kubectl"},
		CommonIssues: []string{"pod stuck", "node not ready", "service unreachable"},
		TypicalSteps: []string{
			"kubectl get pods -n <namespace> to check pod status",
			"kubectl describe pod <pod-name> for detailed information",
			"kubectl logs <pod-name> to check application logs",
			"Check node resources: kubectl top nodes",
			"Verify service and ingress configurations",
		},
	},
	{
		Name:         "database",
		Keywords:     []string{"database", "db", "mysql", "postgres", "mongodb", "sql"},
		CommonIssues: []string{"connection timeout", "slow queries", "lock issues"},
		TypicalSteps: []string{
			"Check database connectivity and credentials",
			"Monitor database performance metrics",
			"Review slow query logs",
			"Check for blocking processes or locks",
			"Verify database configuration and resources",
		},
	},
	{
		Name:         "service",
		Keywords:     []string{"service", "microservice", "api", "endpoint", "server"},
		CommonIssues: []string{"service down", "high latency", "error rate"},
		TypicalSteps: []string{
			"Check service health endpoints",
			"Review application logs for errors",
			"Monitor CPU, memory, and network usage",
			"Verify dependencies and external services",
			"Check load balancer and traffic routing",
		},
	},
	{
		Name:         "deployment",
		Keywords:     []string{"deploy", "deployment", "release", "rollout"},
		CommonIssues: []string{"deployment failed", "rollback needed", "environment issues"},
		TypicalSteps: []string{
			"Verify deployment pipeline status",
			"Check environment-specific configurations",
			"Validate resource availability in target environment",
			"Review deployment logs and error messages",
			"Perform rollback if necessary",
		},
	},
}

// general is the fallback category when no keyword matches.
var general = Category{
	Name: "general",
	TypicalSteps: []string{
		"Identify the affected system and gather error messages",
		"Check recent changes and deployments",
		"Review monitoring dashboards and logs",
		"Escalate to the owning team if unresolved",
	},
}

// Classify returns the first matching category for the query, ordered
// first-match over the static table, plus the keywords that matched.
func Classify(query string) (Category, []string) {
	queryLower := strings.ToLower(query)
	var matched []string
	var found *Category
	for i := range categories {
		for _, kw := range categories[i].Keywords {
			if strings.Contains(queryLower, kw) {
				matched = append(matched, kw)
				if found == nil {
					found = &categories[i]
				}
			}
		}
	}
	if found == nil {
		return general, nil
	}
	return *found, matched
}

// Draft renders a runbook outline for a query with no coverage, seeded with
// the matched category's canonical steps. The output is a starting point for
// the authoring workflow, not a finished document.
func Draft(query string) string {
	cat, _ := Classify(query)
	var b strings.Builder
	b.WriteString("# Runbook: " + query + "\n\n")
	b.WriteString("Category: " + cat.Name + "\n\n")
	if len(cat.CommonIssues) > 0 {
		b.WriteString("## Common issues\n")
		for _, issue := range cat.CommonIssues {
			b.WriteString("- " + issue + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("## Suggested steps\n")
	for i, step := range cat.TypicalSteps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	b.WriteString("\n## Escalation\n")
	b.WriteString("- Document the issue and steps taken before escalating\n")
	return b.String()
}
