package orchestrator

// Phase 单次生成的状态机阶段
type Phase string

const (
	PhaseIdle               Phase = "idle"
	PhasePlanningOutline    Phase = "planning_outline"
	PhaseInitializingState  Phase = "initializing_state"
	PhaseGeneratingChapter  Phase = "generating_chapter"
	PhaseSummarizing        Phase = "summarizing"
	PhaseCheckingRepetition Phase = "checking_repetition"
	PhasePersistingChapter  Phase = "persisting_chapter"
	PhaseCompleted          Phase = "completed"
	PhaseFailed             Phase = "failed"
)

func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed
}

// chapterProgress 第 i 章（共 n 章）开始时的进度值
func chapterProgress(i, n int) int {
	if n <= 0 {
		return 25
	}
	return 25 + (i-1)*60/n
}
