// Package delivery implements one long-poll cycle of the killmail feed.
//
// A poll reads the queue's cursor, asks the Resolver for the next record
// (newest for a fresh queue, otherwise the immediate successor of the last
// delivered id), and retries every 500ms through the Waiter until a record
// shows up or the client's wait budget (1..10s) is spent. The cursor is
// advanced before the record is handed back, so a record is delivered to a
// queue at most once and never out of order.
//
// Nothing here writes HTTP responses; callers format the Result and always
// answer 200. Errors travel inside Result so they can be logged and counted.
package delivery
