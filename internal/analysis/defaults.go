package analysis

import "time"

const lastUpdatedLayout = "2006-01-02 15:04:05"

const pendingSummary = "正在分析最新数据，请稍后刷新查看AI分析结果"

// DefaultBullish is served until the first bullish production succeeds.
func DefaultBullish() BullishPayload {
	return BullishPayload{
		Factors: []Factor{
			{
				ID: "fed-policy", Title: "美联储降息周期", Subtitle: "货币政策转向宽松",
				Description: "美联储持续降息推动实际利率下行，黄金作为非孳息资产的吸引力增强。",
				Details:     []string{"美联储维持宽松货币政策", "实际利率处于低位", "市场预期继续降息", "持有黄金机会成本降低"},
				Impact:      ImpactHigh,
			},
			{
				ID: "central-bank", Title: "全球央行持续购金", Subtitle: "去美元化趋势加速",
				Description: "全球央行持续增持黄金储备，推动黄金需求增长。",
				Details:     []string{"新兴市场央行大幅增持", "储备多元化需求强劲", "年度购金量创新高", "长期支撑金价走势"},
				Impact:      ImpactHigh,
			},
			{
				ID: "dollar-credit", Title: "美元信用动摇", Subtitle: "美债规模持续攀升",
				Description: "美国债务规模不断扩大，市场对美元信用产生担忧。",
				Details:     []string{"美债规模突破历史新高", "债务占GDP比重上升", "财政可持续性受质疑", "避险资金流入黄金"},
				Impact:      ImpactHigh,
			},
			{
				ID: "geopolitical", Title: "地缘政治风险", Subtitle: "避险需求持续升温",
				Description: "全球地缘政治局势紧张，推动避险资金流入黄金市场。",
				Details:     []string{"地区冲突持续", "贸易摩擦加剧", "政治不确定性增加", "避险需求支撑金价"},
				Impact:      ImpactMedium,
			},
			{
				ID: "supply-demand", Title: "供需失衡支撑", Subtitle: "矿产金产量见顶",
				Description: "黄金供应增长受限，而需求持续强劲，供需缺口支撑价格。",
				Details:     []string{"矿产金产量增长缓慢", "生产成本持续上升", "投资需求保持旺盛", "供需基本面偏紧"},
				Impact:      ImpactMedium,
			},
		},
		AnalysisSummary: pendingSummary,
		LastUpdated:     time.Now().Format(lastUpdatedLayout),
	}
}

// DefaultBearish is served until the first bearish production succeeds.
func DefaultBearish() BearishPayload {
	return BearishPayload{
		Factors: []Factor{
			{
				ID: "rate-hike", Title: "美联储升息预期", Subtitle: "降息时点可能推迟",
				Description: "若通胀持续高位运行，美联储可能推迟降息甚至重新升息，提高持有黄金的机会成本。",
				Details:     []string{"关税成本传导使通胀粘性增强", "降息时点可能推迟", "升息预期推动美元走强", "实际利率上升降低黄金吸引力"},
				Impact:      ImpactHigh,
			},
			{
				ID: "profit-taking", Title: "获利了结压力", Subtitle: "投机性头寸平仓",
				Description: "金价快速上涨后积累大量获利盘，技术性回调需求增加。",
				Details:     []string{"高位单日波动加大", "ETF市场结构放大波动", "散户与机构行为分化", "高价位吸引获利盘出逃"},
				Impact:      ImpactMedium,
			},
			{
				ID: "geopolitical-ease", Title: "地缘风险缓和", Subtitle: "避险溢价回落",
				Description: "地缘风险降温时黄金的避险溢价将回落，可能导致价格调整。",
				Details:     []string{"停火谈判进展降低避险需求", "大国关系释放缓和信号", "风险溢价回落", "避险需求常态化有限"},
				Impact:      ImpactMedium,
			},
			{
				ID: "dollar-strength", Title: "美元阶段性走强", Subtitle: "汇率效应压制金价",
				Description: "美元指数阶段性反弹对金价形成直接压制。",
				Details:     []string{"美国经济韧性支撑美元", "美元与黄金通常负相关", "美元升值推高非美持有成本", "汇率效应影响黄金计价"},
				Impact:      ImpactMedium,
			},
			{
				ID: "economic-growth", Title: "全球经济改善", Subtitle: "避险需求减弱",
				Description: "若全球经济适度增长且通胀温和，风险资产吸引力上升，黄金避险需求减弱。",
				Details:     []string{"增长预期改善", "风险资产分流资金", "避险配置需求下降", "黄金相对配置价值下降"},
				Impact:      ImpactLow,
			},
		},
		AnalysisSummary: pendingSummary,
		LastUpdated:     time.Now().Format(lastUpdatedLayout),
	}
}

// DefaultInstitutions is served until the first institutions production succeeds.
func DefaultInstitutions() InstitutionsPayload {
	return InstitutionsPayload{
		Institutions: []Institution{
			{
				Name: "高盛 (Goldman Sachs)", Logo: "GS", Rating: RatingBullish, TargetPrice: 5400, Timeframe: "2026年底",
				Reasoning: "私人投资者与央行需求持续增长",
				KeyPoints: []string{"结构性买盘提供支撑", "央行月均购金维持高位", "降息周期推动金价上行", "ETF持仓回升"},
			},
			{
				Name: "瑞银 (UBS)", Logo: "UBS", Rating: RatingBullish, TargetPrice: 5000, Timeframe: "2026年9月",
				Reasoning: "去美元化与地缘不确定性支撑长期金价",
				KeyPoints: []string{"去美元化需求", "地缘政治不确定性", "上半年或触及关口", "降息放缓后或小幅回落"},
			},
			{
				Name: "摩根士丹利 (Morgan Stanley)", Logo: "MS", Rating: RatingNeutral, TargetPrice: 4500, Timeframe: "2026年中",
				Reasoning: "降息推迟至年中，短期震荡",
				KeyPoints: []string{"强劲消费推迟降息", "关税传导支撑通胀", "上半年美元或维持强势", "波动区间扩大"},
			},
			{
				Name: "花旗 (Citi)", Logo: "C", Rating: RatingBearish, TargetPrice: 2700, Timeframe: "长期展望",
				Reasoning: "经济回到适中增长时金价可能回落",
				KeyPoints: []string{"经济或回归适中增长", "避险需求随之减弱", "基准预测偏谨慎", "短期目标曾上调"},
			},
		},
		AnalysisSummary: pendingSummary,
		LastUpdated:     time.Now().Format(lastUpdatedLayout),
	}
}

// DefaultAdvice is served until the first advice production succeeds.
func DefaultAdvice() AdvicePayload {
	return AdvicePayload{
		MarketAssessment: MarketAssessment{
			CurrentPosition:     "当前市场数据不足，无法准确评估",
			RiskLevel:           "medium",
			RecommendedApproach: "建议观望，等待更明确的市场信号",
			KeyConsiderations:   []string{"关注美联储政策动向", "观察地缘政治风险变化", "监测美元指数走势"},
		},
		Strategies: []Strategy{
			{
				Type: "conservative", Title: "保守配置策略", Description: "适合风险厌恶型投资者，追求资产保值",
				Allocation: "资产配置的5-10%", Timeframe: "1-3年", RiskLevel: "low",
				EntryStrategy: EntryStrategy{
					CurrentPriceAssessment: "建议等待回调后再入场",
					EntryTiming:            "分批建仓，每次回调5%时加仓",
					PositionBuilding:       "分4批建仓，每批25%，间隔2-4周",
				},
				ExitStrategy: ExitStrategy{ProfitTarget: "年度收益目标8-12%", StopLoss: "单笔亏损不超过本金的5%", RebalancingTrigger: "涨幅超过20%时减仓一半"},
				Pros:         []string{"风险可控", "无需频繁操作", "长期对冲通胀"},
				Cons:         []string{"短期收益有限", "资金占用时间长"},
				SuitableFor:  []string{"风险厌恶型投资者", "长期资产配置者"},
			},
			{
				Type: "balanced", Title: "均衡配置策略", Description: "平衡风险与收益",
				Allocation: "资产配置的8-12%", Timeframe: "6-12个月", RiskLevel: "medium",
				EntryStrategy: EntryStrategy{CurrentPriceAssessment: "可小仓位试水", EntryTiming: "分批建仓，结合技术指标", PositionBuilding: "分3批建仓"},
				ExitStrategy:  ExitStrategy{ProfitTarget: "阶段收益目标15-20%", StopLoss: "单笔亏损不超过本金的8%", RebalancingTrigger: "达到目标收益或跌破关键支撑位"},
				Pros:          []string{"灵活应对市场变化", "收益潜力较好"},
				Cons:          []string{"需要一定的市场判断能力"},
				SuitableFor:   []string{"有一定经验的投资者"},
			},
			{
				Type: "opportunistic", Title: "机会型策略", Description: "捕捉短期机会，严格止损",
				Allocation: "资产配置的3-5%", Timeframe: "1-3个月", RiskLevel: "high",
				EntryStrategy: EntryStrategy{CurrentPriceAssessment: "仅适合极小部分资金参与", EntryTiming: "仅在关键技术位突破时", PositionBuilding: "单笔投入，严格止损"},
				ExitStrategy:  ExitStrategy{ProfitTarget: "短期目标10-15%", StopLoss: "亏损不超过5%", RebalancingTrigger: "达到目标或触发止损立即离场"},
				Pros:          []string{"资金利用效率高"},
				Cons:          []string{"风险极高", "容易受情绪影响"},
				SuitableFor:   []string{"专业投资者"},
			},
		},
		CorePrinciples: []Principle{
			{Title: "风险管理", Description: "永远把风险控制放在第一位"},
			{Title: "仓位控制", Description: "黄金配置不超过总资产的15%"},
			{Title: "再平衡", Description: "每季度评估一次配置比例"},
			{Title: "长期视角", Description: "黄金适合长期配置，避免频繁交易"},
		},
		RiskWarning: "黄金市场波动较大，投资有风险，入市需谨慎。",
		Disclaimer:  "以上内容仅供参考，不构成投资建议。",
	}
}

// DefaultSummary is served until the first summary production succeeds.
func DefaultSummary() SummaryPayload {
	return SummaryPayload{
		CoreBullishLogic: []string{
			"美联储降息周期降低持有黄金的机会成本",
			"全球央行持续购金，去美元化趋势加速",
			"美元信用动摇，美债规模持续扩大",
			"地缘政治风险支撑避险需求",
		},
		MainRisks: []string{
			"降息时点可能推迟",
			"高位获利盘带来回调压力",
			"地缘风险缓和导致避险溢价回落",
			"美元阶段性走强压制金价",
		},
		MarketConsensus: []string{
			"多数机构看好长期走势",
			"短期可能因政策预期变化而震荡",
			"结构性买盘为金价提供支撑",
		},
		InstitutionTargets: []InstitutionTarget{
			{Institution: "高盛", Target: 5400, Probability: "高", Timeframe: "2026年底"},
			{Institution: "瑞银", Target: 5000, Probability: "高", Timeframe: "2026年9月"},
			{Institution: "摩根士丹利", Target: 4500, Probability: "中", Timeframe: "2026年中"},
		},
		ComprehensiveJudgment: Judgment{
			BullishSummary: "美联储降息预期与央行购金形成支撑。",
			BearishSummary: "政策预期变化与获利了结可能导致回调。",
			NeutralSummary: "建议分批建仓，控制仓位，做好风险管理。",
		},
		CoreView:                 "黄金处于长期牛市通道，大概率维持高位震荡偏强格局。",
		InvestmentRecommendation: "根据自身风险偏好适度配置黄金资产。",
		ConfidenceLevel:          "中",
		TimeHorizon:              "中期",
	}
}
