package workers

import (
	"sync"

	mhb "github.com/Asterisk-tech/moderatelyhelpfulbot/errors"
	"github.com/Asterisk-tech/moderatelyhelpfulbot/logger"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

var (
	wg       sync.WaitGroup
	schedule *cron.Cron
)

// InitWorkers 把所有后台任务挂到 cron 上。
// 各任务的周期在配置文件里，见 service.* 小节
func InitWorkers() {
	schedule = cron.New()
	mustSchedule("service.ingest.cron", "ingest", IngestOnce)
	mustSchedule("service.sweep.cron", "sweep", SweepOnce)
	mustSchedule("service.messages.cron", "messages", PumpMessagesOnce)
	mustSchedule("service.purge.cron", "purge", PurgeOnce)
	schedule.Start()
}

func mustSchedule(specKey, name string, job func() error) {
	spec := viper.GetString(specKey)
	_, err := schedule.AddFunc(spec, func() {
		wg.Add(1)
		defer wg.Done()
		if err := job(); err != nil {
			// 另一个实例持有扫描租约属于正常情况，等下一轮就行
			if errors.Is(err, mhb.ErrSweepRunning) {
				logger.Debugf("workers: %s: %v", name, err)
				return
			}
			logger.Errorf("workers: %s: %v", name, err)
		}
	})
	if err != nil {
		panic("workers:mustSchedule: bad cron spec for " + specKey + ": " + err.Error())
	}
}

// Stop 停掉调度器并等在途任务跑完
func Stop() {
	if schedule != nil {
		<-schedule.Stop().Done()
	}
	wg.Wait()
}
