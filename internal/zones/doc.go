// Package zones provides the zone directory and name resolution.
//
// Panels report zones by number only. The directory maps zone numbers to
// human-readable names ("Front Door", "Garage Motion") used when rendering
// notification messages. Zones without an entry resolve to a placeholder
// so templates never render an empty name.
//
// The Resolver keeps an in-memory copy of the directory, refreshed on
// demand, so message rendering never touches the database on the hot path.
package zones
