package utils

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.viam.com/test"
	gutils "go.viam.com/utils"
)

func TestGroupWorkParallel(t *testing.T) {
	for _, total := range []int{0, 1, 3, ParallelFactor, ParallelFactor*3 + 1, 1000} {
		seen := make([]int, total)
		var mu sync.Mutex
		groups := 0
		GroupWorkParallel(total, func(numGroups int) {
			groups = numGroups
		}, func(groupNum, groupSize, from, to int) (MemberWorkFunc, GroupWorkDoneFunc) {
			test.That(t, to-from, test.ShouldEqual, groupSize)
			local := 0
			return func(memberNum, workNum int) {
					seen[workNum]++
					local++
				}, func() {
					mu.Lock()
					defer mu.Unlock()
					test.That(t, local, test.ShouldEqual, groupSize)
				}
		})
		test.That(t, groups, test.ShouldBeLessThanOrEqualTo, ParallelFactor)
		test.That(t, groups, test.ShouldBeLessThanOrEqualTo, total)
		for _, n := range seen {
			test.That(t, n, test.ShouldEqual, 1)
		}
	}
}

func TestRunInParallel(t *testing.T) {
	wait100ms := func(ctx context.Context) error {
		gutils.SelectContextOrWait(ctx, 100*time.Millisecond)
		return ctx.Err()
	}

	elapsed, err := RunInParallel(context.Background(), []SimpleFunc{wait100ms, wait100ms})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, elapsed, test.ShouldBeLessThan, 190*time.Millisecond)
	test.That(t, elapsed, test.ShouldBeGreaterThan, 90*time.Millisecond)

	errFunc := func(ctx context.Context) error {
		return errors.New("bad")
	}

	elapsed, err = RunInParallel(context.Background(), []SimpleFunc{wait100ms, wait100ms, errFunc})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, elapsed, test.ShouldBeLessThan, 90*time.Millisecond)

	panicFunc := func(ctx context.Context) error {
		panic(1)
	}

	_, err = RunInParallel(context.Background(), []SimpleFunc{panicFunc})
	test.That(t, err, test.ShouldNotBeNil)
}
