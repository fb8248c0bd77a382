// Package cli provides the fieldsync command-line client.
//
// Each command opens the local store, runs one operation through app.App and
// exits. Connectivity is only monitored by the commands that need it
// (status, watch).
//
// Commands:
//   - login / logout (online with offline fallback)
//   - companies, status, pending
//   - sync [catalog], resync, verify
//   - push
//   - voucher supply | rainfall | rattrap
//   - authorize approve | reject ID
//   - server show | set-url URL
//   - watch
//
// Global flags mirror the config package: -c/--config, -a/--server,
// -i/--interval, --db and --log-level.
package cli
