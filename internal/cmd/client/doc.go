// Package client provides the `killfeed` client commands.
//
// # Address configuration
//
// The HTTP base URL is discovered by the application that embeds the
// commands via a BaseURLFunc. The standalone binary reads KILLFEED_URL and
// defaults to http://127.0.0.1:8080; `poll --url` overrides both.
//
// Usage
//
//	# RedisQ-compatible packages, one JSON document per line
//	killfeed poll --queue my-bot
//
//	# verbose feed, only kills worth more than 1b ISK, stop after 10
//	killfeed poll --endpoint stream --queue my-bot --limit 10 \
//	    --filter 'total_value > 1000000000.0'
//
//	# load fixtures into the local record source (idempotent on killmail_id)
//	killfeed import ./testdata/killmails.jsonl
//	killfeed import --source sqlite --sqlite-path ./km.db killmails.json
//
//	# replay the newest 20 records to a queue (stop the server first when
//	# cursors live in pebble)
//	killfeed rewind --endpoint redisq --queue my-bot --count 20
//
//	killfeed config print --config ./killfeed.yaml
//
// Notes
//
//   - poll and the server keep independent cursors per endpoint: the same
//     --queue on redisq and stream advances separately.
//   - import and config read the same config file and KILLFEED_* variables
//     as `server start`.
package client
