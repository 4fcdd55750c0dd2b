package analysis

import "fmt"

const systemPrompt = "你是一位专业的黄金市场分析师。只返回有效的JSON，不要输出其他内容。"

const factorSchema = `{
  "%[1]s": [
    {
      "id": "...",
      "title": "...",
      "subtitle": "...",
      "description": "...",
      "details": ["要点1", "要点2", "要点3", "要点4"],
      "impact": "high"
    }
  ],
  "analysis_summary": "...",
  "last_updated": "YYYY-MM-DD HH:MM:SS"
}`

func bullishPrompt(promptCtx string) string {
	return fmt.Sprintf(`%s
请搜索最新的黄金市场新闻和分析报告，识别出5个最重要的看涨因子：美联储政策、全球央行购金、美元信用/美债、地缘政治风险、供需基本面。
id 只能是 fed-policy, central-bank, dollar-credit, geopolitical, supply-demand 之一；impact 只能是 high, medium, low；details 必须包含4个要点。

请严格按照以下JSON格式返回：
%s`, promptCtx, fmt.Sprintf(factorSchema, "bullish_factors"))
}

func bearishPrompt(promptCtx string) string {
	return fmt.Sprintf(`%s
请搜索最新的黄金市场新闻和分析报告，识别出5个最重要的看跌因子：升息预期、获利了结、地缘风险缓和、美元走强、经济改善。
id 只能是 rate-hike, profit-taking, geopolitical-ease, dollar-strength, economic-growth 之一；impact 只能是 high, medium, low；details 必须包含4个要点。

请严格按照以下JSON格式返回：
%s`, promptCtx, fmt.Sprintf(factorSchema, "bearish_factors"))
}

func institutionsPrompt(promptCtx string) string {
	return fmt.Sprintf(`%s
请搜索并整理高盛、瑞银、摩根士丹利、花旗对黄金价格的最新预测。每家机构提供目标价格（数字）、时间框架、评级（bullish/bearish/neutral）、核心理由和4个关键要点。

请严格按照以下JSON格式返回：
{
  "institutions": [
    {"name": "高盛 (Goldman Sachs)", "logo": "GS", "rating": "bullish", "target_price": 0, "timeframe": "...", "reasoning": "...", "key_points": ["...", "...", "...", "..."]}
  ],
  "analysis_summary": "...",
  "last_updated": "YYYY-MM-DD HH:MM:SS"
}`, promptCtx)
}

func advicePrompt(promptCtx string) string {
	return fmt.Sprintf(`%s
基于以上数据、多空因素与机构预测，给出黄金投资建议：市场评估，以及保守(conservative)、均衡(balanced)、机会型(opportunistic)三种策略，每种包含配置比例、周期、风险等级、入场与离场策略、优缺点、适合人群和执行步骤。

请严格按照以下JSON格式返回：
{
  "market_assessment": {"current_position": "...", "risk_level": "low|medium|high", "recommended_approach": "...", "key_considerations": ["..."]},
  "strategies": [
    {"type": "conservative", "title": "...", "description": "...", "allocation": "...", "timeframe": "...", "risk_level": "low",
     "entry_strategy": {"current_price_assessment": "...", "recommended_entry_range": "...", "entry_timing": "...", "position_building": "..."},
     "exit_strategy": {"profit_target": "...", "stop_loss": "...", "rebalancing_trigger": "..."},
     "pros": ["..."], "cons": ["..."], "suitable_for": ["..."], "execution_steps": ["..."]}
  ],
  "core_principles": [{"title": "...", "description": "..."}],
  "risk_warning": "...",
  "disclaimer": "..."
}`, promptCtx)
}

func summaryPrompt(promptCtx string) string {
	return fmt.Sprintf(`%s
请综合以上数据、多空因素与机构预测，给出黄金市场综合分析。

请严格按照以下JSON格式返回：
{
  "core_bullish_logic": ["..."],
  "main_risks": ["..."],
  "market_consensus": ["..."],
  "institution_targets": [{"institution": "...", "target": 0, "probability": "高|中|低", "timeframe": "..."}],
  "current_price": 0,
  "comprehensive_judgment": {"bullish_summary": "...", "bearish_summary": "...", "neutral_summary": "..."},
  "core_view": "...",
  "investment_recommendation": "...",
  "confidence_level": "高|中|低",
  "time_horizon": "短期|中期|长期"
}`, promptCtx)
}
