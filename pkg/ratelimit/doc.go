// Package ratelimit bounds the call rate of each subject per resource class
// using a sliding window of admission timestamps. The limiter is an
// in-process abuse guard; it is not shared across replicas.
package ratelimit
