// Package helper provides test helpers for the pebbleengine event store:
// a small bank-account fixture domain (deposits and withdrawals tagged with
// their account), filter builders for it, and temporary stream factories.
package helper
