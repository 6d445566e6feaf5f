package poller_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	promdto "github.com/prometheus/client_model/go"
	"go.uber.org/mock/gomock"

	"github.com/HaPhanBaoMinh/upmon/internal/domain"
	"github.com/HaPhanBaoMinh/upmon/internal/domain/mock"
	"github.com/HaPhanBaoMinh/upmon/internal/poller"
)

// Helper

const interval = 10 * time.Second

var (
	errBackend = errors.New("backend unavailable")
	base       = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
)

func snap(id string, startSec int, values ...float64) domain.Snapshot {
	s := domain.Snapshot{
		ID:          id,
		Name:        "svc-" + id,
		URL:         "https://" + id + ".example.com",
		IsHealthy:   true,
		LastChecked: base.Add(time.Duration(startSec+len(values)) * time.Second).Format(time.RFC3339),
		Uptime:      99.5,
	}

	for i, v := range values {
		s.LatencyData = append(s.LatencyData, domain.RawPoint{
			Value:     v,
			Timestamp: base.Add(time.Duration(startSec+i) * time.Second).Format(time.RFC3339),
		})
	}

	return s
}

// fakeRepo only serves ListServices; call numbers start at 1.
type fakeRepo struct {
	domain.StatusRepo

	calls atomic.Int32
	list  func(ctx context.Context, call int) ([]domain.Snapshot, error)
}

func (f *fakeRepo) ListServices(ctx context.Context) ([]domain.Snapshot, error) {
	n := f.calls.Add(1)
	return f.list(ctx, int(n))
}

func (f *fakeRepo) Calls() int32 {
	return f.calls.Load()
}

func counterValue(registry *prometheus.Registry, name, labelName, labelValue string) float64 {
	families, err := registry.Gather()
	Expect(err).NotTo(HaveOccurred())

	for _, family := range families {
		if family.GetName() != name {
			continue
		}

		for _, metric := range family.GetMetric() {
			if hasLabel(metric, labelName, labelValue) {
				return metric.GetCounter().GetValue()
			}
		}
	}

	return 0
}

func hasLabel(metric *promdto.Metric, name, value string) bool {
	for _, label := range metric.GetLabel() {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}

	return false
}

// Tests

var _ = Describe("Scheduler", func() {
	var (
		ctx      context.Context
		clock    clockwork.FakeClock
		registry *prometheus.Registry
		metrics  *poller.Metrics
	)

	BeforeEach(func() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(context.Background())
		DeferCleanup(cancel)

		clock = clockwork.NewFakeClockAt(base)
		registry = prometheus.NewRegistry()

		var err error
		metrics, err = poller.NewMetrics(registry, poller.MetricsConfig{Namespace: "upmon"})
		Expect(err).NotTo(HaveOccurred())
	})

	newScheduler := func(repo domain.StatusRepo) *poller.Scheduler {
		s := poller.New(repo, poller.Config{Interval: interval}).WithClock(clock).WithMetrics(metrics)
		DeferCleanup(s.Stop)

		return s
	}

	seq := func(s *poller.Scheduler) func() uint64 {
		return func() uint64 { return s.Current().Seq }
	}

	Describe("lifecycle", func() {
		It("polls immediately on start and clears loading", func() {
			repo := &fakeRepo{list: func(context.Context, int) ([]domain.Snapshot, error) {
				return []domain.Snapshot{snap("1", 0, 120)}, nil
			}}
			s := newScheduler(repo)

			Expect(s.Current().Loading).To(BeTrue())
			Expect(s.Phase()).To(Equal(poller.PhaseIdle))

			Expect(s.Start(ctx)).To(Succeed())

			Eventually(func() bool { return s.Current().Loading }).Should(BeFalse())
			Expect(s.Current().Services).To(HaveLen(1))
			Expect(s.Phase()).To(Equal(poller.PhaseActive))
		})

		It("polls again on every interval", func() {
			repo := &fakeRepo{list: func(_ context.Context, call int) ([]domain.Snapshot, error) {
				return []domain.Snapshot{snap("1", call, float64(call))}, nil
			}}
			s := newScheduler(repo)
			Expect(s.Start(ctx)).To(Succeed())
			Eventually(seq(s)).Should(Equal(uint64(1)))

			clock.BlockUntil(1)
			for poll := 2; poll <= 4; poll++ {
				clock.Advance(interval)
				Eventually(seq(s)).Should(Equal(uint64(poll)))
			}

			Expect(s.Current().Services[0].Latency.Values()).To(Equal([]float64{1, 2, 3, 4}))
		})

		It("rejects invalid transitions", func() {
			repo := &fakeRepo{list: func(context.Context, int) ([]domain.Snapshot, error) { return nil, nil }}
			s := newScheduler(repo)

			Expect(s.Start(ctx)).To(Succeed())
			Expect(s.Start(ctx)).To(MatchError(poller.ErrAlreadyStarted))

			s.Stop()
			s.Stop()

			Expect(s.Phase()).To(Equal(poller.PhaseStopped))
			Expect(s.Start(ctx)).To(MatchError(poller.ErrStopped))
		})

		It("closes updates when stopped before starting", func() {
			s := newScheduler(&fakeRepo{})

			s.Stop()

			Eventually(s.Updates()).Should(BeClosed())
		})
	})

	Describe("error channel", func() {
		It("keeps the last good services across failures and clears the error on success", func() {
			payload := []domain.Snapshot{snap("1", 0, 120, 145), snap("2", 0, 80)}
			repo := &fakeRepo{list: func(_ context.Context, call int) ([]domain.Snapshot, error) {
				if call >= 2 && call <= 4 {
					return nil, errBackend
				}
				return payload, nil
			}}
			s := newScheduler(repo)
			Expect(s.Start(ctx)).To(Succeed())
			Eventually(seq(s)).Should(Equal(uint64(1)))

			before := s.Current()
			Expect(before.Err).NotTo(HaveOccurred())
			clock.BlockUntil(1)

			for poll := 2; poll <= 4; poll++ {
				clock.Advance(interval)
				Eventually(seq(s)).Should(Equal(uint64(poll)))

				st := s.Current()
				Expect(st.Err).To(MatchError(errBackend))

				var fetchErr *poller.FetchError
				Expect(errors.As(st.Err, &fetchErr)).To(BeTrue())
				Expect(fetchErr.Seq).To(Equal(uint64(poll)))

				Expect(st.Services).To(HaveLen(2))
				for i := range st.Services {
					Expect(st.Services[i]).To(BeIdenticalTo(before.Services[i]))
				}
			}

			clock.Advance(interval)
			Eventually(seq(s)).Should(Equal(uint64(5)))

			after := s.Current()
			Expect(after.Err).NotTo(HaveOccurred())
			Expect(after.ErrMessage()).To(BeEmpty())
			for i := range after.Services {
				Expect(after.Services[i]).To(BeIdenticalTo(before.Services[i]))
			}

			Expect(counterValue(registry, "upmon_poll_total", "outcome", "failure")).To(Equal(3.0))
			Expect(counterValue(registry, "upmon_poll_total", "outcome", "success")).To(Equal(2.0))
		})

		It("leaves loading off after a failed first poll", func() {
			repo := &fakeRepo{list: func(context.Context, int) ([]domain.Snapshot, error) { return nil, errBackend }}
			s := newScheduler(repo)
			Expect(s.Start(ctx)).To(Succeed())

			Eventually(seq(s)).Should(Equal(uint64(1)))
			Expect(s.Current().Loading).To(BeFalse())
			Expect(s.Current().ErrMessage()).To(ContainSubstring(errBackend.Error()))
		})
	})

	Describe("single flight", func() {
		It("never overlaps fetches and runs a coalesced refresh after the current one", func() {
			release := make(chan struct{})
			repo := &fakeRepo{list: func(_ context.Context, call int) ([]domain.Snapshot, error) {
				if call == 2 {
					<-release
				}
				return []domain.Snapshot{snap("1", call, float64(call))}, nil
			}}
			s := newScheduler(repo)
			Expect(s.Start(ctx)).To(Succeed())
			Eventually(seq(s)).Should(Equal(uint64(1)))
			clock.BlockUntil(1)

			clock.Advance(interval)
			Eventually(repo.Calls).Should(Equal(int32(2)))

			clock.Advance(interval)
			Eventually(func() float64 {
				return counterValue(registry, "upmon_poll_total", "outcome", "skipped")
			}).Should(Equal(1.0))

			s.Refresh()
			Consistently(repo.Calls, 100*time.Millisecond).Should(Equal(int32(2)))

			close(release)

			Eventually(repo.Calls).Should(Equal(int32(3)))
			Eventually(seq(s)).Should(Equal(uint64(3)))
			Consistently(repo.Calls, 100*time.Millisecond).Should(Equal(int32(3)))
			Expect(s.Current().Services[0].Latency.Values()).To(Equal([]float64{1, 2, 3}))
		})
	})

	Describe("lifecycle guard", func() {
		It("discards a completion that resolves after stop", func() {
			release := make(chan struct{})
			repo := &fakeRepo{list: func(context.Context, int) ([]domain.Snapshot, error) {
				<-release
				return []domain.Snapshot{snap("1", 0, 1)}, nil
			}}
			s := newScheduler(repo)
			Expect(s.Start(ctx)).To(Succeed())
			Eventually(repo.Calls).Should(Equal(int32(1)))

			s.Stop()
			close(release)

			Consistently(func() bool { return s.Current().Loading }, 200*time.Millisecond).Should(BeTrue())
			Expect(s.Current().Services).To(BeEmpty())
			Eventually(s.Updates()).Should(BeClosed())
		})
	})

	Describe("updates", func() {
		It("publishes changes and stays quiet when nothing changed", func() {
			repo := &fakeRepo{list: func(context.Context, int) ([]domain.Snapshot, error) {
				return []domain.Snapshot{snap("1", 0, 10, 20)}, nil
			}}
			s := newScheduler(repo)
			Expect(s.Start(ctx)).To(Succeed())

			var st *poller.State
			Eventually(s.Updates()).Should(Receive(&st))
			Expect(st.Loading).To(BeFalse())
			Expect(st.Services).To(HaveLen(1))

			clock.BlockUntil(1)
			clock.Advance(interval)
			Eventually(seq(s)).Should(Equal(uint64(2)))

			Consistently(s.Updates(), 100*time.Millisecond).ShouldNot(Receive())
			Expect(s.Current().Services[0]).To(BeIdenticalTo(st.Services[0]))
		})
	})

	Describe("commands", func() {
		var repo *mock.MockStatusRepo

		BeforeEach(func() {
			ctrl := gomock.NewController(GinkgoT())
			repo = mock.NewMockStatusRepo(ctrl)
		})

		It("re-polls authoritatively after a delete", func() {
			gomock.InOrder(
				repo.EXPECT().ListServices(gomock.Any()).Return([]domain.Snapshot{snap("1", 0, 10)}, nil),
				repo.EXPECT().DeleteService(gomock.Any(), "1").Return(nil),
				repo.EXPECT().ListServices(gomock.Any()).Return([]domain.Snapshot{}, nil),
			)
			s := newScheduler(repo)
			Expect(s.Start(ctx)).To(Succeed())
			Eventually(seq(s)).Should(Equal(uint64(1)))
			Expect(s.Current().Services).To(HaveLen(1))

			Expect(s.Delete(ctx, "1")).To(Succeed())

			Eventually(seq(s)).Should(Equal(uint64(2)))
			Expect(s.Current().Services).To(BeEmpty())
			Expect(s.Current().ByID).To(BeEmpty())
		})

		It("keeps services when a scheduled poll returns an empty list", func() {
			gomock.InOrder(
				repo.EXPECT().ListServices(gomock.Any()).Return([]domain.Snapshot{snap("1", 0, 10)}, nil),
				repo.EXPECT().ListServices(gomock.Any()).Return([]domain.Snapshot{}, nil),
			)
			s := newScheduler(repo)
			Expect(s.Start(ctx)).To(Succeed())
			Eventually(seq(s)).Should(Equal(uint64(1)))

			clock.BlockUntil(1)
			clock.Advance(interval)

			Eventually(seq(s)).Should(Equal(uint64(2)))
			Expect(s.Current().Services).To(HaveLen(1))
		})

		It("does not re-poll when a delete fails", func() {
			gomock.InOrder(
				repo.EXPECT().ListServices(gomock.Any()).Return([]domain.Snapshot{snap("1", 0, 10)}, nil),
				repo.EXPECT().DeleteService(gomock.Any(), "1").Return(errBackend),
			)
			s := newScheduler(repo)
			Expect(s.Start(ctx)).To(Succeed())
			Eventually(seq(s)).Should(Equal(uint64(1)))

			err := s.Delete(ctx, "1")
			Expect(err).To(MatchError(errBackend))
			Expect(err.Error()).To(ContainSubstring("delete service 1"))

			Consistently(seq(s), 100*time.Millisecond).Should(Equal(uint64(1)))
			Expect(s.Current().Services).To(HaveLen(1))
		})

		It("forwards create and checks, then re-polls", func() {
			draft := domain.ServiceDraft{Name: "Auth Service", URL: "https://auth.example.com/health"}

			gomock.InOrder(
				repo.EXPECT().ListServices(gomock.Any()).Return([]domain.Snapshot{}, nil),
				repo.EXPECT().AddService(gomock.Any(), draft).Return(snap("9", 0), nil),
				repo.EXPECT().ListServices(gomock.Any()).Return([]domain.Snapshot{snap("9", 0, 45)}, nil),
				repo.EXPECT().CheckService(gomock.Any(), "9").Return(nil),
				repo.EXPECT().ListServices(gomock.Any()).Return([]domain.Snapshot{snap("9", 0, 45, 48)}, nil),
				repo.EXPECT().CheckAll(gomock.Any()).Return(nil),
				repo.EXPECT().ListServices(gomock.Any()).Return([]domain.Snapshot{snap("9", 0, 45, 48, 42)}, nil),
			)
			s := newScheduler(repo)
			Expect(s.Start(ctx)).To(Succeed())
			Eventually(seq(s)).Should(Equal(uint64(1)))

			Expect(s.Create(ctx, draft)).To(Succeed())
			Eventually(seq(s)).Should(Equal(uint64(2)))
			Expect(s.Current().Services).To(HaveLen(1))

			Expect(s.Check(ctx, "9")).To(Succeed())
			Eventually(seq(s)).Should(Equal(uint64(3)))

			Expect(s.CheckAll(ctx)).To(Succeed())
			Eventually(seq(s)).Should(Equal(uint64(4)))

			svc, ok := s.Current().Service("9")
			Expect(ok).To(BeTrue())
			Expect(svc.Latency.Values()).To(Equal([]float64{45, 48, 42}))
		})
	})
})
