// Package classify decides which transit passes are eligible for certificate
// generation.
//
// The portal has no direct eligibility endpoint. The classifier reuses the
// quantity-application form as a probe: submitting a pass number and reading
// the resulting error label. One specific rejection text marks a pass whose
// storage-license form was never generated, and that population is exactly
// what the document stage should process.
package classify
