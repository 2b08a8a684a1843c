// Package jobs implements background processing for the circulation
// engine.
//
// The jobs package contains the scheduled tasks that run independently
// of the request path.
//
// # Job Types
//
// Available background jobs:
//
//   - ExpirySweeper: Expires ready-for-pickup reservations whose pickup
//     window has lapsed and moves their copies onward
//   - DueReminderProcessor: Surfaces loans coming due within the
//     reminder window
//
// # Lifecycle
//
// Each job follows the same pattern:
//
//	sweeper := jobs.NewExpirySweeper(reservationService, 5*time.Minute)
//	sweeper.Start()
//	defer sweeper.Stop()
//
// Start launches a goroutine that fires on a ticker; Stop waits for any
// in-flight run to finish. RunOnce triggers a single run synchronously,
// for tests or manual operation.
//
// # Error Handling
//
// Jobs log errors but don't crash the application. A failed run is
// retried on the next tick.
package jobs
