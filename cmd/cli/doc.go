// Package cli constructs the glmigrate command-line interface. It wires the
// Cobra root command, the layered configuration loader, and structured logging,
// and registers the migrate command that moves a GitLab group between instances.
package cli
