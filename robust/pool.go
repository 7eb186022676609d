package robust

import (
	"context"
	"sync"

	"edgeaudit/logger"
)

// runPool 固定大小协程池，对 n 个单元并行执行 fn 并按原始下标稳定收集结果
//
// 取消语义：工作协程在每个单元之间检查 ctx，已完成的单元保留、
// 未开始的单元丢弃，返回 partial=true。单元内部不被打断。
func runPool(ctx context.Context, workers, n int, fn func(i int) PerturbationResult) ([]PerturbationResult, bool) {
	if workers <= 0 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	type slot struct {
		res  PerturbationResult
		done bool
	}
	slots := make([]slot, n)

	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				slots[i] = slot{res: fn(i), done: true}
			}
		}()
	}

	cancelled := false
feed:
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			cancelled = true
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if cancelled {
		logger.Warn("⚠️ 扫描被取消，仅保留已完成的单元")
	}

	results := make([]PerturbationResult, 0, n)
	for i := range slots {
		if slots[i].done {
			results = append(results, slots[i].res)
		}
	}
	return results, cancelled
}
