// Package docgen produces transit-pass certificates from the portal's public
// lookup pages.
//
// Each eligible pass number resolves to a lookup URL that renders the permit
// in full. The generator opens that page in its own tab, confirms the page
// echoes the requested pass number, scrapes the permit fields, and hands them
// to the renderer together with a QR code of the same lookup URL so the
// printed certificate can be verified against the portal. Failures are
// isolated per pass number.
package docgen
