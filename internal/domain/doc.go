// Package domain models district drought-monitoring data served by the
// water-stress backend.
//
// # Data Source
//
// The backend computes, per village, a Water Stress Index (WSI) from the
// current groundwater level, the minimum required level, and the seasonal
// rainfall deviation, then ranks villages by a priority score combining WSI
// and population. A separate endpoint runs the tanker allocator over the same
// inputs. Both computations are opaque to this service; it only reads their
// results:
//
//	GET /api/villages/status     → []Village, sorted by priority_score desc
//	GET /api/tankers/allocation  → AllocationPlan
//
// The two responses are fetched independently and may describe different
// snapshots. Allocation entries reference villages by village_id and a
// missing match is normal.
//
// # Severity Tiers
//
// Tiers are derived from WSI, never stored:
//
//	wsi > 70        critical
//	40 < wsi <= 70  warning
//	wsi <= 40       safe
//
// Boundaries are half-open: 40.0 and 70.0 belong to the lower tier. A missing
// WSI decodes to 0 and therefore classifies as safe. [Classify] is the only
// place the thresholds live; [Summarize] and the query filters call it so the
// dashboard counts and the grid never disagree.
//
// # Units
//
//	gw_current_level   meters below ground
//	rainfall_dev_pct   signed percent deviation from the seasonal norm
//	deficit_liters     liters per day
//	allocated_liters   liters per day, in 10,000 L tanker loads
package domain
