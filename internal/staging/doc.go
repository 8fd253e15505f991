// Package staging sweeps the scratch space the pipeline leaves behind:
// per-clip work directories orphaned by a crash and half-written outputs
// from atomic writes that never reached their rename.
package staging
