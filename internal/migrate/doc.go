// Package migrate drives a GitLab group migration: every discovered project is
// transferred into the destination group and its origin history is then pruned,
// keeping the newest releases and pipelines, the default branch, and protected
// branches. Safety checks withhold branch deletions the destination cannot confirm.
package migrate
