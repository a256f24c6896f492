// Package platform defines the hosting platform domain model shared by the
// migration components, the capability interfaces they consume, and the error
// taxonomy used to decide whether a failure is scoped to one project or fatal
// to the whole run.
package platform
