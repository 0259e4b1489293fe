// Package domain defines the scenario planning data model: scenario tree
// nodes, the scenario-sensitive entities (projects and assignments), and the
// delta records a scenario layers over its parent.
package domain
