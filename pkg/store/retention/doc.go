// Package retention prunes the mix journal by age and record count, on
// demand or on a cron schedule.
//
// Schedules use the standard five-field cron syntax:
//
//	"0 3 * * *"    daily at 3 AM
//	"0 */6 * * *"  every 6 hours
//	"@hourly"      once an hour
//
// An empty schedule disables automatic pruning; Prune can still be called
// directly.
package retention
