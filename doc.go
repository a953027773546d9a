// Package fluent runs SQL statements against named connection profiles.
//
// A ProfileTable lists the database servers an application may use and the
// databases it may open on each. Connections are addressed by identifiers of
// the form "profile:database" and opened on demand by a Pool, which keeps one
// driver per identifier:
//
//	profiles, err := fluent.LoadProfiles("profiles.yaml")
//	if err != nil {
//		return err
//	}
//	pool := fluent.NewPool(profiles)
//	defer pool.Close()
//
// A Session executes statements on one profile at a time and buffers the
// result of the last one for the Fetch accessors:
//
//	s := fluent.NewSession(pool)
//	if _, err := s.UseProfile(ctx, "main:shop"); err != nil {
//		return err
//	}
//	if _, err := s.ExecutePrepared(ctx, "SELECT id, name FROM users WHERE active = ?", []any{true}); err != nil {
//		return err
//	}
//	byID, err := s.FetchColumnsByKey("id", "name")
//
// Insert, Update and Delete build statements from column lists. Their Prepare
// variants bind values as parameters; the others render every value as a
// literal quoted for the profile's dialect.
//
// Sessions are not safe for concurrent use. Pools are.
package fluent
