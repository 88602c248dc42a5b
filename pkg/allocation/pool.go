package allocation

import (
	"sync"
)

// categoryJob 单个分类的分配任务
type categoryJob struct {
	index int
	task  categoryTask
}

// jobResult 分配任务结果
type jobResult struct {
	index      int
	allocation Allocation
	err        error
}

// workerPool 有界工作池，结果按任务下标回收，输出顺序与调度无关
type workerPool struct {
	workers int
}

func newWorkerPool(workers int) *workerPool {
	if workers <= 0 {
		workers = 4
	}
	return &workerPool{workers: workers}
}

// run 并行执行全部任务，返回按下标排列的结果；任一任务失败时返回第一个（按下标）错误
func (p *workerPool) run(tasks []categoryTask, fn func(categoryTask) (Allocation, error)) ([]Allocation, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	workers := p.workers
	if workers > len(tasks) {
		workers = len(tasks)
	}

	resultChan := make(chan jobResult, len(tasks))
	jobChan := make(chan categoryJob, len(tasks))

	// 启动工作协程
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobChan {
				alloc, err := fn(job.task)
				resultChan <- jobResult{index: job.index, allocation: alloc, err: err}
			}
		}()
	}

	// 发送任务
	for i, t := range tasks {
		jobChan <- categoryJob{index: i, task: t}
	}
	close(jobChan)

	// 等待完成
	go func() {
		wg.Wait()
		close(resultChan)
	}()

	// 收集结果
	results := make([]Allocation, len(tasks))
	errs := make([]error, len(tasks))
	for r := range resultChan {
		results[r.index] = r.allocation
		errs[r.index] = r.err
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
