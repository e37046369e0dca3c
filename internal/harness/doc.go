// Package harness runs record scenarios: a record, the policy version to
// check it against and the expected outcome of validation and
// reconciliation.
//
// # Scenario Format
//
//	name: n3_stale_reading
//	description: "stored reading count is stale"
//	policy: v2                  # optional, default table when empty
//	fields: parts,statistics    # optional, reconcile fields
//	record:
//	  id: n3-2023-07
//	  title: N3 July 2023
//	  level: N3
//	  type: official
//	  sections:
//	    - {mondai: 9, part: reading, questions: [{}, {}, {}]}
//	  statistics: {vocabulary: 0, grammar: 0, reading: 10, listening: 0}
//	expect:
//	  valid: false
//	  issues: [StatisticsMismatch]
//	  changed: true
//	  diffs: [StatisticsMismatch]
//	  statistics: {reading: 3}
//
// # Expectations
//
//   - valid: the validation verdict
//   - issues: validation issue kinds, in report order
//   - error: the kind of the error that aborted reconciliation
//   - changed: whether reconciliation applied a change
//   - diffs: reconciliation diff kinds, in order
//   - parts: the reconciled part of every section, in order
//   - statistics: subset of the reconciled statistics block
//
// An omitted expectation is not checked; an empty list expects nothing.
// Every scenario that reconciles also checks that reconciling the result
// again changes nothing.
package harness
