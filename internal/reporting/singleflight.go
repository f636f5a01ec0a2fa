package reporting

import "context"

// dedupFill collapses concurrent fills of the same block into one upstream
// call. Followers share the leader's result; a caller whose context ends
// first gets its context error instead of waiting.
func (s *Service) dedupFill(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	resultChan := s.fill.DoChan(key, func() (any, error) {
		return fn(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		return res.Val, res.Err
	}
}
