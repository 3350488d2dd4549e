// Package harness replays field scenarios against a fresh store and checks
// what the alert engine and the outbox did.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: adults_threshold
//	description: "An inspection above the adults threshold notifies the team"
//	now: "2026-10-19T08:00:00Z"      # optional, defaults to testutil.Epoch
//	settings:                        # merged over the defaults
//	  enableWhatsappNearby: true
//	traps:
//	  - {id: t1, name: North, lat: 41.0322, lng: 16.8534}
//	rules:
//	  - {id: al_1, metric: adults, threshold: 5}
//	flow:
//	  - inspect: {trap: t1, date: "2026-10-18", adults: 6}
//	    expect: {fired: [al_1], outbox: true}
//	  - locate: {lat: 41.0322, lng: 16.8534}
//	    expect: {fired: [al_3], trap: t1}
//	  - send_pending: true
//	assertions:
//	  - {type: outbox_count, status: sent, count: 1}
//	  - {type: message_count, tag: alert, count: 1}
//	  - {type: fired_count, rule: al_1, count: 1}
//	  - {type: risk, trap: t1, level: Medium}
//
// # Determinism
//
// Every run uses sequential ids (insp_1, msg_1, wa_1, ...) and a clock that
// starts at now and advances one second per reading, so traces are stable
// enough for golden comparison.
package harness
