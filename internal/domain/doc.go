// Package domain models isobar contour requests and responses.
//
// # Data Source
//
// Mean sea-level pressure is published per forecast timestep as a flat
// binary file named after its model run:
//
//	"<YYYYMMDD>_<HH>z.bin"  →  e.g. "20251028_06z.bin"
//	date of the run, then the cycle hour (00z, 06z, 12z, 18z).
//
// Each file is exactly 181 × 91 × 2 = 32942 bytes: one little-endian IEEE
// 754 half-precision value per grid point, row-major, row 0 at the north
// pole, 2° spacing. Column 180 repeats column 0 (the wrap column). Values
// are hPa; half precision tops out at 65504, so Pascals do not fit.
//
// # Requests
//
// A contour request names two adjacent timesteps by the index of the
// earlier one, a blend factor between them, and the iso-values to trace.
// The timestep list travels with the request so the service holds no
// catalogue of its own:
//
//	{
//	  "lower_timestep_index": 3,
//	  "blend_factor": 0.25,
//	  "iso_values": [996, 1000, 1004],
//	  "correlation_token": 1730102400123,
//	  "timesteps": [{"date": "20251028", "cycle": "00z", "resource": "pressure/20251028_00z.bin"}, ...],
//	  "data_base_url": "https://cdn.example.com/data/",
//	  "format": "vertices"
//	}
//
// The correlation token is opaque and echoed verbatim, and every request is
// answered exactly once. Callers submit a new request on every scrub or
// animation frame and must match responses by token, not by arrival order.
// A WebSocket client whose tokens increase may set "skip_if_stale" to have
// the session drop that request's response once a newer one was delivered;
// see [StaleFilter].
//
// # Responses
//
// The default "vertices" format is a flat float32 buffer of 3D points on the
// unit sphere, two points per segment, so its length is a multiple of 6.
// On the wire it is framed as an 8-byte little-endian token followed by the
// little-endian floats ([EncodeFrame]). The "geojson" format carries a
// FeatureCollection in lon/lat instead.
//
// # Failure Policy
//
// Unknown timesteps, fetch failures and malformed payloads never surface as
// errors to the caller. They produce an empty response with the original
// token and a [FallbackReason], so a caller waiting on that token never
// hangs and simply draws nothing for the frame.
package domain
