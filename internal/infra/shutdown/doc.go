// Package shutdown stops long-running commands on SIGINT or SIGTERM and
// runs registered cleanup hooks within a deadline.
package shutdown
