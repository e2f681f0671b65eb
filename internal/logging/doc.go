// Package logging provides slog-based structured logging helpers shared by
// every modelshelf component: attribute constructors, standardized field
// names, and console/JSON handler construction driven by configuration.
package logging
