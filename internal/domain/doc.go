// Package domain defines the roastery production model shared by the planner,
// the executor and the ledger store.
//
// Quantities (weights in kilograms), costs, ratios and loss rates are all
// shopspring decimals. Nothing in this package performs I/O.
//
// The mass-balance relation used throughout is
//
//	output = input × (1 − lossRate)
//
// and its inverse, used for goal-driven planning,
//
//	input = output / (1 − lossRate)
package domain
