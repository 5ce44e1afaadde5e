// Package querycache is the data layer between the site's views and its REST
// backend: a process-wide query cache keyed by (entity type, params), and a
// mutation executor that invalidates whole entity types after a write.
//
// Components:
//   - Client: keyed entries with subscriber counts, request de-duplication and
//     stale-while-revalidate reads. Construct once per process with New.
//   - Mutation: exactly one write, then invalidation of the owning entity type.
//   - GenStore: generation counter per entity type. A fetch remembers the
//     generation it started under; results that finish after a bump are stale.
//   - Provider + Codec[V] (optional): persisted last-known-good results, framed
//     with their generation and restored as placeholders on the next fetch.
//
// Reading:
//
//	sub := querycache.Observe(c, q) // starts at most one fetch for q.Key
//	defer sub.Close()
//	st, err := sub.Wait(ctx)
//
// Writing:
//
//	post, err := querycache.Mutate(ctx, c, createBlog, input) // invalidates "blog" on success
package querycache
